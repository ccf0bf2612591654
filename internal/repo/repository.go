package repo

import (
	"context"

	"github.com/hamed0406/uptimenotifier/internal/domain"
)

// TransitionStore keeps the UP/DOWN changes monitors detect. Entries live
// for the process lifetime only.
type TransitionStore interface {
	Append(ctx context.Context, t domain.Transition) error
	// Recent returns up to limit entries, newest first. limit <= 0 means all.
	Recent(ctx context.Context, limit int) ([]domain.Transition, error)
}
