package probe

import (
	"context"
	"testing"
	"time"

	"github.com/hamed0406/uptimenotifier/internal/domain"
)

func TestSweep_OmitsEntitiesPastCeiling(t *testing.T) {
	// 3 of 5 entities answer quickly; 2 hang past the ceiling.
	chk := CheckerFunc(func(ctx context.Context, target string) CheckResult {
		switch target {
		case "fast-up":
			return CheckResult{Status: domain.StatusUp}
		case "fast-down":
			return CheckResult{Status: domain.StatusDown}
		default:
			<-ctx.Done()
			return CheckResult{Status: domain.StatusDown, Message: ctx.Err().Error()}
		}
	})
	entities := []domain.Entity{
		{Name: "a", URL: "fast-up"},
		{Name: "b", URL: "fast-down"},
		{Name: "c", URL: "fast-up"},
		{Name: "d", URL: "slow"},
		{Name: "e", URL: "slow"},
	}

	start := time.Now()
	got := Sweep(context.Background(), chk, entities, 100*time.Millisecond)
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("sweep did not respect ceiling: %v", elapsed)
	}
	if len(got) != 3 {
		t.Fatalf("want 3 answers, got %v", got)
	}
	if got["a"] != domain.StatusUp || got["b"] != domain.StatusDown || got["c"] != domain.StatusUp {
		t.Fatalf("unexpected answers: %v", got)
	}
	if _, ok := got["d"]; ok {
		t.Fatalf("slow entity should be omitted: %v", got)
	}
}

func TestSweep_ReturnsEarlyWhenAllAnswer(t *testing.T) {
	chk := CheckerFunc(func(context.Context, string) CheckResult {
		return CheckResult{Status: domain.StatusUp}
	})
	entities := []domain.Entity{{Name: "x", URL: "u"}, {Name: "y", URL: "u"}}

	start := time.Now()
	got := Sweep(context.Background(), chk, entities, 30*time.Second)
	if time.Since(start) > time.Second {
		t.Fatalf("sweep should not wait for the ceiling when everyone answered")
	}
	if len(got) != 2 {
		t.Fatalf("want 2 answers, got %v", got)
	}
}

func TestSweep_NoEntities(t *testing.T) {
	got := Sweep(context.Background(), CheckerFunc(nil), nil, time.Second)
	if len(got) != 0 {
		t.Fatalf("want empty map, got %v", got)
	}
}
