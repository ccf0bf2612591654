package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hamed0406/uptimenotifier/internal/domain"
	"github.com/hamed0406/uptimenotifier/internal/metrics"
	"github.com/hamed0406/uptimenotifier/internal/notify"
	"github.com/hamed0406/uptimenotifier/internal/probe"
	"github.com/hamed0406/uptimenotifier/internal/repo/memory"
)

// ---- shared helpers ----

// seqChecker replays HTTP codes; once exhausted it repeats the last one.
// onCall runs after each check with the 1-based call number.
type seqChecker struct {
	mu     sync.Mutex
	codes  []int
	calls  int
	onCall func(n int)
}

func (c *seqChecker) Check(_ context.Context, _ string) probe.CheckResult {
	c.mu.Lock()
	i := c.calls
	if i >= len(c.codes) {
		i = len(c.codes) - 1
	}
	c.calls++
	n, code, hook := c.calls, c.codes[i], c.onCall
	c.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return probe.CheckResult{Status: domain.StatusFromBool(probe.IsAcceptable(code)), StatusCode: code}
}

func (c *seqChecker) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type call struct {
	entity string
	status domain.Status
	ctxErr error
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []call
	// gate, when set, is waited on before the report is produced.
	gate    chan struct{}
	started chan struct{}
}

func (f *fakeNotifier) Dispatch(ctx context.Context, entity string, st domain.Status, contacts []domain.Contact) <-chan notify.Report {
	out := make(chan notify.Report, 1)
	go func() {
		if f.started != nil {
			f.started <- struct{}{}
		}
		if f.gate != nil {
			<-f.gate
		}
		f.mu.Lock()
		f.calls = append(f.calls, call{entity: entity, status: st, ctxErr: ctx.Err()})
		f.mu.Unlock()
		ds := make([]notify.Delivery, len(contacts))
		for i, c := range contacts {
			ds[i] = notify.Delivery{Contact: c, Channel: notify.Classify(c.ID)}
		}
		out <- notify.Report{Entity: entity, Status: st, Deliveries: ds}
	}()
	return out
}

func (f *fakeNotifier) snapshot() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func entity(name string) domain.Entity {
	return domain.Entity{
		Name:     name,
		URL:      "http://127.0.0.1:1/" + name,
		Interval: time.Millisecond,
		Contacts: []domain.Contact{{ID: "5551234567"}, {ID: "ops"}},
	}
}

func runUntilDone(t *testing.T, ctx context.Context, m *Monitor) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("monitor did not stop")
	}
}

// ---- tests ----

func TestMonitor_NotifiesOnlyOnTransitions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chk := &seqChecker{codes: []int{200, 200, 500, 500, 200}}
	chk.onCall = func(n int) {
		if n == 5 {
			cancel()
		}
	}
	nt := &fakeNotifier{}
	store := memory.New(16)
	m := NewMonitor(zap.NewNop(), entity("api-1"), chk, nt,
		WithTransitionStore(store),
		WithDiagnoser(nil),
	)

	runUntilDone(t, ctx, m)

	calls := nt.snapshot()
	if len(calls) != 2 {
		t.Fatalf("want 2 notifications, got %d: %+v", len(calls), calls)
	}
	if calls[0].status != domain.StatusDown || calls[1].status != domain.StatusUp {
		t.Fatalf("want DOWN then UP, got %+v", calls)
	}
	if chk.count() != 5 {
		t.Fatalf("no tick may start after shutdown, got %d probes", chk.count())
	}

	recorded, _ := store.Recent(context.Background(), 0)
	if len(recorded) != 2 {
		t.Fatalf("want 2 transitions recorded, got %d", len(recorded))
	}
	if recorded[0].From != domain.StatusDown || recorded[0].To != domain.StatusUp || recorded[0].Delivered != 2 {
		t.Fatalf("unexpected newest transition: %+v", recorded[0])
	}
}

func TestMonitor_StartsUpSoHealthyEntityIsSilent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chk := &seqChecker{codes: []int{200, 301, 302}}
	chk.onCall = func(n int) {
		if n == 10 {
			cancel()
		}
	}
	nt := &fakeNotifier{}
	runUntilDone(t, ctx, NewMonitor(zap.NewNop(), entity("quiet"), chk, nt, WithDiagnoser(nil)))

	if got := len(nt.snapshot()); got != 0 {
		t.Fatalf("want no notifications, got %d", got)
	}
}

func TestMonitor_PersistentDownNotifiesOnce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chk := &seqChecker{codes: []int{500, 0, 404}}
	chk.onCall = func(n int) {
		if n == 8 {
			cancel()
		}
	}
	nt := &fakeNotifier{}
	runUntilDone(t, ctx, NewMonitor(zap.NewNop(), entity("flat"), chk, nt, WithDiagnoser(nil)))

	calls := nt.snapshot()
	if len(calls) != 1 || calls[0].status != domain.StatusDown {
		t.Fatalf("want exactly one DOWN, got %+v", calls)
	}
}

func TestMonitor_ShutdownDrainsInFlightNotification(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chk := &seqChecker{codes: []int{500}}
	nt := &fakeNotifier{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	m := NewMonitor(zap.NewNop(), entity("slow"), chk, nt, WithDiagnoser(nil))

	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	<-nt.started
	cancel()
	select {
	case <-done:
		t.Fatal("Run returned before the notification pass finished")
	case <-time.After(50 * time.Millisecond):
	}
	close(nt.gate)

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("monitor did not stop after drain")
	}
	calls := nt.snapshot()
	if len(calls) != 1 {
		t.Fatalf("want 1 notification, got %d", len(calls))
	}
	if calls[0].ctxErr != nil {
		t.Fatalf("in-flight pass must not see the shutdown signal: %v", calls[0].ctxErr)
	}
	if chk.count() != 1 {
		t.Fatalf("no tick may start after shutdown, got %d", chk.count())
	}
}

func TestMonitor_DiagnosesOnDownOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chk := &seqChecker{codes: []int{500, 500, 200}}
	chk.onCall = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	var mu sync.Mutex
	diagnosed := 0
	diag := func(context.Context, string) probe.DNSStatus {
		mu.Lock()
		diagnosed++
		mu.Unlock()
		return probe.DNSStatus{Host: "127.0.0.1", Class: probe.DNSResolves}
	}
	core, logs := observer.New(zapcore.InfoLevel)
	m := NewMonitor(zap.New(core), entity("dns"), chk, &fakeNotifier{}, WithDiagnoser(diag))
	runUntilDone(t, ctx, m)

	if diagnosed != 1 {
		t.Fatalf("want one diagnosis, got %d", diagnosed)
	}
	if n := logs.FilterMessage("monitor_dns_diagnosis").Len(); n != 1 {
		t.Fatalf("want one diagnosis log, got %d", n)
	}
	if n := logs.FilterMessage("monitor_transition").Len(); n != 2 {
		t.Fatalf("want two transition logs, got %d", n)
	}
}

func TestMonitor_ProbeGetsTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var deadline time.Duration
	chk := probe.CheckerFunc(func(c context.Context, _ string) probe.CheckResult {
		if dl, ok := c.Deadline(); ok {
			deadline = time.Until(dl)
		}
		cancel()
		return probe.CheckResult{Status: domain.StatusUp}
	})
	m := NewMonitor(zap.NewNop(), entity("t"), chk, &fakeNotifier{}, WithProbeTimeout(time.Minute), WithDiagnoser(nil))
	runUntilDone(t, ctx, m)

	if deadline <= 0 || deadline > time.Minute {
		t.Fatalf("probe context should carry the configured timeout, got %v", deadline)
	}
}

func TestMonitor_TLSInspectedOnHTTPSEntitiesOnly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chk := &seqChecker{codes: []int{200}}
	chk.onCall = func(n int) {
		if n == 5 {
			cancel()
		}
	}
	inspected := 0
	inspect := func(_ context.Context, rawURL string) probe.TLSStatus {
		inspected++
		return probe.TLSStatus{Host: "secure.example.com", Valid: true, ExpiresIn: 48 * time.Hour, Redirect: true}
	}

	e := entity("secure")
	e.URL = "https://secure.example.com/health"
	m := NewMonitor(zap.NewNop(), e, chk, &fakeNotifier{}, WithDiagnoser(nil), WithTLSInspector(inspect, time.Hour))
	runUntilDone(t, ctx, m)

	if inspected != 1 {
		t.Fatalf("want one inspection within the hour, got %d", inspected)
	}
	if v := testutil.ToFloat64(metrics.TLSCertValid.WithLabelValues("secure")); v != 1 {
		t.Fatalf("cert valid gauge = %v", v)
	}
	if v := testutil.ToFloat64(metrics.TLSCertExpirySeconds.WithLabelValues("secure")); v != (48 * time.Hour).Seconds() {
		t.Fatalf("expiry gauge = %v", v)
	}
	if v := testutil.ToFloat64(metrics.TLSRedirect.WithLabelValues("secure")); v != 1 {
		t.Fatalf("redirect gauge = %v", v)
	}

	plainCtx, plainCancel := context.WithCancel(context.Background())
	defer plainCancel()
	plainChk := &seqChecker{codes: []int{200}}
	plainChk.onCall = func(n int) {
		if n == 3 {
			plainCancel()
		}
	}
	inspected = 0
	runUntilDone(t, plainCtx, NewMonitor(zap.NewNop(), entity("plain"), plainChk, &fakeNotifier{},
		WithDiagnoser(nil), WithTLSInspector(inspect, 0)))
	if inspected != 0 {
		t.Fatalf("http entity must not be inspected, got %d", inspected)
	}
}

func TestMonitor_InvalidCertificateIsLogged(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	chk := &seqChecker{codes: []int{200}}
	chk.onCall = func(n int) {
		if n == 3 {
			cancel()
		}
	}
	inspect := func(context.Context, string) probe.TLSStatus {
		return probe.TLSStatus{Error: "x509: certificate signed by unknown authority"}
	}
	core, logs := observer.New(zapcore.InfoLevel)
	e := entity("selfsigned")
	e.URL = "https://selfsigned.example.com"
	runUntilDone(t, ctx, NewMonitor(zap.New(core), e, chk, &fakeNotifier{},
		WithDiagnoser(nil), WithTLSInspector(inspect, 0)))

	// cancel lands during tick 3, so only ticks 1 and 2 inspect
	if n := logs.FilterMessage("monitor_tls_invalid").Len(); n != 2 {
		t.Fatalf("want an invalid-cert warning per inspected tick, got %d", n)
	}
	if v := testutil.ToFloat64(metrics.TLSCertValid.WithLabelValues("selfsigned")); v != 0 {
		t.Fatalf("cert valid gauge = %v", v)
	}
}
