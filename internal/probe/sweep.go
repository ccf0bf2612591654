package probe

import (
	"context"
	"sync"
	"time"

	"github.com/hamed0406/uptimenotifier/internal/domain"
)

// Sweep re-probes every entity concurrently and returns whatever results
// arrived before ceiling elapsed (or ctx ended), keyed by entity name.
// Entities still in flight at the deadline are left out of the map.
func Sweep(ctx context.Context, chk Checker, entities []domain.Entity, ceiling time.Duration) map[string]domain.Status {
	ctx, cancel := context.WithTimeout(ctx, ceiling)
	defer cancel()

	type answer struct {
		name   string
		status domain.Status
	}
	// Buffered so late probes never block after we stop listening.
	answers := make(chan answer, len(entities))

	var wg sync.WaitGroup
	for _, e := range entities {
		wg.Add(1)
		go func(e domain.Entity) {
			defer wg.Done()
			st := chk.Check(ctx, e.URL).Status
			if ctx.Err() != nil {
				return // cut off by the ceiling; its DOWN is not a real answer
			}
			answers <- answer{name: e.Name, status: st}
		}(e)
	}
	go func() {
		wg.Wait()
		close(answers)
	}()

	out := make(map[string]domain.Status, len(entities))
	for {
		select {
		case a, ok := <-answers:
			if !ok {
				return out
			}
			out[a.name] = a.status
		case <-ctx.Done():
			return out
		}
	}
}
