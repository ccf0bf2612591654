package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimenotifier/internal/config"
	"github.com/hamed0406/uptimenotifier/internal/domain"
	"github.com/hamed0406/uptimenotifier/internal/metrics"
)

// Router owns one Sender per configured channel and fans a status change
// out to an entity's contacts. It is built once at startup and shared by
// every monitor; it holds no mutable state after construction.
type Router struct {
	log         *zap.Logger
	senders     map[ChannelKind]Sender
	disabled    map[ChannelKind]error
	sendTimeout time.Duration

	emailSubject   string
	emailSignature string
}

type Option func(*Router)

// WithSendTimeout bounds each per-contact send.
func WithSendTimeout(d time.Duration) Option {
	return func(r *Router) {
		if d > 0 {
			r.sendTimeout = d
		}
	}
}

// WithSender registers s for kind, replacing whatever the config built.
func WithSender(kind ChannelKind, s Sender) Option {
	return func(r *Router) {
		r.senders[kind] = s
		delete(r.disabled, kind)
	}
}

// NewRouter builds a sender for every channel whose configuration is
// complete. Incomplete channels are left unregistered and logged; the
// call only fails when that happens and there is no log fallback.
func NewRouter(log *zap.Logger, ch config.Channels, opts ...Option) (*Router, error) {
	r := &Router{
		log:         log,
		senders:     make(map[ChannelKind]Sender),
		disabled:    make(map[ChannelKind]error),
		sendTimeout: 10 * time.Second,
	}

	if ch.SMS != nil {
		if s, err := NewSMSSender(*ch.SMS); err != nil {
			r.disabled[ChannelPhone] = err
		} else {
			r.senders[ChannelPhone] = s
		}
	}
	if ch.Email != nil {
		r.emailSubject = ch.Email.Subject
		r.emailSignature = ch.Email.Signature
		if s, err := NewEmailSender(*ch.Email); err != nil {
			r.disabled[ChannelEmail] = err
		} else {
			r.senders[ChannelEmail] = s
		}
	}
	if ch.Log == nil || !ch.Log.Disabled {
		r.senders[ChannelLog] = NewLogSender(log)
	}

	for _, o := range opts {
		o(r)
	}

	var problems error
	for kind, err := range r.disabled {
		log.Error("channel_disabled", zap.String("channel", kind.String()), zap.Error(err))
		metrics.ChannelRegistered.WithLabelValues(kind.String()).Set(0)
		problems = multierr.Append(problems, fmt.Errorf("%s: %w", kind, err))
	}
	for kind := range r.senders {
		metrics.ChannelRegistered.WithLabelValues(kind.String()).Set(1)
	}
	if problems != nil && r.senders[ChannelLog] == nil {
		return nil, fmt.Errorf("%w: %w", ErrNoFallback, problems)
	}
	log.Info("router_ready", zap.Strings("channels", r.Registered()))
	return r, nil
}

// Registered lists the channels that have a sender, sorted.
func (r *Router) Registered() []string {
	out := make([]string, 0, len(r.senders))
	for k := range r.senders {
		out = append(out, k.String())
	}
	sort.Strings(out)
	return out
}

// Disabled returns the channels rejected at construction and why.
func (r *Router) Disabled() map[ChannelKind]error {
	out := make(map[ChannelKind]error, len(r.disabled))
	for k, v := range r.disabled {
		out[k] = v
	}
	return out
}

// Dispatch starts a notification pass and returns a channel that
// receives exactly one Report once every contact has been attempted.
func (r *Router) Dispatch(ctx context.Context, entity string, st domain.Status, contacts []domain.Contact) <-chan Report {
	done := make(chan Report, 1)
	go func() { done <- r.Notify(ctx, entity, st, contacts) }()
	return done
}

// Notify sends "<entity> is <UP|DOWN>" to every contact concurrently and
// blocks until all sends have finished, successfully or not.
func (r *Router) Notify(ctx context.Context, entity string, st domain.Status, contacts []domain.Contact) Report {
	start := time.Now()
	rep := Report{
		ID:         uuid.NewString(),
		Entity:     entity,
		Status:     st,
		Deliveries: make([]Delivery, len(contacts)),
	}
	log := r.log.With(
		zap.String("dispatch_id", rep.ID),
		zap.String("entity", entity),
		zap.String("status", st.String()),
	)
	text := fmt.Sprintf("%s is %s", entity, st)

	var wg sync.WaitGroup
	for i, c := range contacts {
		wg.Add(1)
		go func(i int, c domain.Contact) {
			defer wg.Done()
			rep.Deliveries[i] = r.deliver(ctx, log, text, c)
		}(i, c)
	}
	wg.Wait()

	metrics.DispatchSeconds.Observe(time.Since(start).Seconds())
	log.Info("dispatch_done",
		zap.Int("contacts", len(contacts)),
		zap.Int("failed", rep.Failed()),
		zap.Duration("took", time.Since(start)),
	)
	return rep
}

func (r *Router) deliver(ctx context.Context, log *zap.Logger, text string, c domain.Contact) (d Delivery) {
	d = Delivery{Contact: c, Channel: Classify(c.ID)}
	defer func() {
		if p := recover(); p != nil {
			d.Err = fmt.Errorf("%w: %v", ErrSenderPanic, p)
		}
		result := "ok"
		if d.Err != nil {
			result = "error"
			log.Error("contact_notify_failed",
				zap.String("contact", c.ID),
				zap.String("channel", d.Channel.String()),
				zap.Error(d.Err),
			)
		} else {
			log.Debug("contact_notified",
				zap.String("contact", c.ID),
				zap.String("channel", d.Channel.String()),
			)
		}
		metrics.DeliveriesTotal.WithLabelValues(d.Channel.String(), result).Inc()
	}()

	sender, ok := r.senders[d.Channel]
	if !ok {
		d.Err = fmt.Errorf("%w: %s", ErrChannelUnavailable, d.Channel)
		return d
	}

	sctx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()
	d.Err = sender.Send(sctx, r.format(d.Channel, text, c))
	return d
}

// format applies channel-specific presentation: email gets a subject and
// a " - signature" suffix; other channels carry the plain text.
func (r *Router) format(kind ChannelKind, text string, c domain.Contact) Message {
	m := Message{To: c.ID, Body: text}
	if kind != ChannelEmail {
		return m
	}
	m.Subject = firstNonEmpty(c.Subject, r.emailSubject, text)
	if sig := firstNonEmpty(c.Signature, r.emailSignature); sig != "" {
		m.Body = text + " - " + sig
	}
	return m
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
