package scheduler

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimenotifier/internal/domain"
	"github.com/hamed0406/uptimenotifier/internal/probe"
)

// Supervisor runs one Monitor per entity. Monitors share the checker and
// notifier and nothing else.
type Supervisor struct {
	log      *zap.Logger
	monitors []*Monitor
	wg       sync.WaitGroup
}

func NewSupervisor(log *zap.Logger, entities []domain.Entity, checker probe.Checker, n Notifier, opts ...Option) *Supervisor {
	s := &Supervisor{log: log, monitors: make([]*Monitor, 0, len(entities))}
	for _, e := range entities {
		s.monitors = append(s.monitors, NewMonitor(log, e, checker, n, opts...))
	}
	return s
}

// Start launches every monitor and returns immediately.
func (s *Supervisor) Start(ctx context.Context) {
	for _, m := range s.monitors {
		s.wg.Add(1)
		go func(m *Monitor) {
			defer s.wg.Done()
			m.Run(ctx)
		}(m)
	}
	s.log.Info("supervisor_started", zap.Int("monitors", len(s.monitors)))
}

// Wait blocks until every monitor has returned.
func (s *Supervisor) Wait() {
	s.wg.Wait()
	s.log.Info("supervisor_drained")
}

func (s *Supervisor) Len() int { return len(s.monitors) }
