package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/uptimenotifier/internal/domain"
)

// DefaultCapacity bounds the log when New is given no size.
const DefaultCapacity = 1024

// Store is a fixed-size ring of transitions; the oldest entry is
// overwritten once the ring is full.
type Store struct {
	mu    sync.RWMutex
	buf   []domain.Transition
	next  int
	count int
}

func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{buf: make([]domain.Transition, capacity)}
}

func (m *Store) Append(ctx context.Context, t domain.Transition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf[m.next] = t
	m.next = (m.next + 1) % len(m.buf)
	if m.count < len(m.buf) {
		m.count++
	}
	return nil
}

func (m *Store) Recent(ctx context.Context, limit int) ([]domain.Transition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.count
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]domain.Transition, 0, n)
	for i := 1; i <= n; i++ {
		idx := (m.next - i + len(m.buf)) % len(m.buf)
		out = append(out, m.buf[idx])
	}
	return out, nil
}

// Len reports how many transitions are currently held.
func (m *Store) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.count
}
