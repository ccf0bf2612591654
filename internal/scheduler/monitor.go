package scheduler

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimenotifier/internal/domain"
	"github.com/hamed0406/uptimenotifier/internal/metrics"
	"github.com/hamed0406/uptimenotifier/internal/notify"
	"github.com/hamed0406/uptimenotifier/internal/probe"
	"github.com/hamed0406/uptimenotifier/internal/repo"
)

// Notifier starts a notification pass; the returned channel yields one
// Report once every contact has been attempted.
type Notifier interface {
	Dispatch(ctx context.Context, entity string, st domain.Status, contacts []domain.Contact) <-chan notify.Report
}

// Diagnoser explains why an entity's host may be unreachable.
type Diagnoser func(ctx context.Context, rawURL string) probe.DNSStatus

// TLSInspector reports on an https entity's certificate.
type TLSInspector func(ctx context.Context, rawURL string) probe.TLSStatus

const defaultTLSEvery = time.Hour

type state struct {
	last  domain.Status
	since time.Time
}

// Monitor polls one entity and notifies its contacts when the observed
// status differs from the last one. Its state is touched only by the
// goroutine running Run.
type Monitor struct {
	log         *zap.Logger
	entity      domain.Entity
	checker     probe.Checker
	notifier    Notifier
	transitions repo.TransitionStore
	diagnose    Diagnoser
	inspectTLS  TLSInspector
	tlsEvery    time.Duration

	probeTimeout time.Duration
	st           state
	lastTLS      time.Time
}

type Option func(*Monitor)

// WithProbeTimeout bounds a single check.
func WithProbeTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.probeTimeout = d
		}
	}
}

// WithTransitionStore records every detected transition in s.
func WithTransitionStore(s repo.TransitionStore) Option {
	return func(m *Monitor) { m.transitions = s }
}

// WithDiagnoser replaces the DNS diagnosis run on DOWN transitions; nil
// turns it off.
func WithDiagnoser(d Diagnoser) Option {
	return func(m *Monitor) { m.diagnose = d }
}

// WithTLSInspector replaces the certificate check run on https entities,
// at most once per every (every <= 0 means each tick); nil turns it off.
func WithTLSInspector(fn TLSInspector, every time.Duration) Option {
	return func(m *Monitor) {
		m.inspectTLS = fn
		m.tlsEvery = every
	}
}

func NewMonitor(log *zap.Logger, e domain.Entity, checker probe.Checker, n Notifier, opts ...Option) *Monitor {
	m := &Monitor{
		log:          log.With(zap.String("entity", e.Name), zap.String("url", e.URL)),
		entity:       e,
		checker:      checker,
		notifier:     n,
		diagnose:     probe.Diagnose,
		inspectTLS:   probe.CheckTLS,
		tlsEvery:     defaultTLSEvery,
		probeTimeout: 10 * time.Second,
		st:           state{last: domain.StatusUp, since: time.Now().UTC()},
	}
	for _, o := range opts {
		o(m)
	}
	metrics.EntityUp.WithLabelValues(e.Name).Set(1)
	return m
}

// Run ticks immediately, then waits the entity's interval after each
// tick finishes. It returns once ctx is done; a tick already running is
// allowed to complete first.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info("monitor_started", zap.Duration("interval", m.entity.Interval))

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("monitor_stopped")
			return
		case <-timer.C:
			dctx := context.WithoutCancel(ctx)
			m.tick(dctx)
			if ctx.Err() == nil {
				m.checkTLS(dctx)
			}
			if ctx.Err() != nil {
				m.log.Info("monitor_stopped")
				return
			}
			timer.Reset(m.entity.Interval)
		}
	}
}

func (m *Monitor) tick(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	res := m.checker.Check(pctx, m.entity.URL)
	cancel()

	if res.Status == m.st.last {
		m.log.Debug("monitor_tick",
			zap.String("status", res.Status.String()),
			zap.Int("status_code", res.StatusCode),
			zap.Float64("latency_ms", res.LatencyMS),
		)
		return
	}

	from := m.st.last
	now := time.Now().UTC()
	m.log.Info("monitor_transition",
		zap.String("from", from.String()),
		zap.String("to", res.Status.String()),
		zap.Duration("held_for", now.Sub(m.st.since)),
		zap.Int("status_code", res.StatusCode),
		zap.String("reason", res.Message),
	)
	m.st = state{last: res.Status, since: now}
	metrics.EntityUp.WithLabelValues(m.entity.Name).Set(metrics.BoolGauge(res.Up()))
	metrics.TransitionsTotal.WithLabelValues(m.entity.Name, res.Status.String()).Inc()

	if !res.Up() && m.diagnose != nil {
		dctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
		d := m.diagnose(dctx, m.entity.URL)
		cancel()
		m.log.Warn("monitor_dns_diagnosis",
			zap.String("host", d.Host),
			zap.String("class", string(d.Class)),
			zap.Strings("ips", d.IPs),
			zap.String("cname", d.CNAME),
			zap.String("resolver_error", d.ResolverError),
		)
	}

	rep := <-m.notifier.Dispatch(ctx, m.entity.Name, res.Status, m.entity.Contacts)

	if m.transitions == nil {
		return
	}
	err := m.transitions.Append(ctx, domain.Transition{
		Entity:    m.entity.Name,
		From:      from,
		To:        res.Status,
		At:        now,
		Delivered: rep.Delivered(),
		Failed:    rep.Failed(),
	})
	if err != nil {
		m.log.Warn("monitor_record_error", zap.Error(err))
	}
}

func (m *Monitor) checkTLS(ctx context.Context) {
	if m.inspectTLS == nil || !strings.HasPrefix(strings.ToLower(m.entity.URL), "https://") {
		return
	}
	now := time.Now()
	if !m.lastTLS.IsZero() && m.tlsEvery > 0 && now.Sub(m.lastTLS) < m.tlsEvery {
		return
	}
	m.lastTLS = now

	tctx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	st := m.inspectTLS(tctx, m.entity.URL)
	cancel()

	name := m.entity.Name
	metrics.TLSCertValid.WithLabelValues(name).Set(metrics.BoolGauge(st.Valid))
	metrics.TLSCertExpirySeconds.WithLabelValues(name).Set(st.ExpiresIn.Seconds())
	metrics.TLSRedirect.WithLabelValues(name).Set(metrics.BoolGauge(st.Redirect))

	fields := []zap.Field{
		zap.Bool("valid", st.Valid),
		zap.Bool("redirect", st.Redirect),
		zap.Int("expires_in_days", int(st.ExpiresIn.Hours()/24)),
	}
	if !st.Valid {
		m.log.Warn("monitor_tls_invalid", append(fields, zap.String("error", st.Error))...)
		return
	}
	m.log.Debug("monitor_tls", fields...)
}
