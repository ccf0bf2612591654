package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/hamed0406/uptimenotifier/internal/domain"
)

var (
	ErrIncompleteConfig   = errors.New("channel configuration incomplete")
	ErrChannelUnavailable = errors.New("channel not registered")
	ErrNoFallback         = errors.New("no fallback log channel")
	ErrSenderPanic        = errors.New("sender panicked")
)

// Message is what a Sender transmits. Subject is only used by channels
// that have one.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers one message on one channel. Implementations hold only
// immutable credentials and must be safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, m Message) error

func (f SenderFunc) Send(ctx context.Context, m Message) error { return f(ctx, m) }

// Delivery is the outcome of notifying one contact.
type Delivery struct {
	Contact domain.Contact
	Channel ChannelKind
	Err     error
}

// Report is produced once every contact of a notification pass has been
// attempted.
type Report struct {
	ID         string
	Entity     string
	Status     domain.Status
	Deliveries []Delivery
}

func (r Report) Delivered() int { return len(r.Deliveries) - r.Failed() }

func (r Report) Failed() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Err != nil {
			n++
		}
	}
	return n
}

// Err joins every per-contact failure, or returns nil.
func (r Report) Err() error {
	var err error
	for _, d := range r.Deliveries {
		if d.Err != nil {
			err = multierr.Append(err, fmt.Errorf("contact %s via %s: %w", d.Contact.ID, d.Channel, d.Err))
		}
	}
	return err
}
