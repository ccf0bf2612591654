package probe

import (
	"context"

	"github.com/hamed0406/uptimenotifier/internal/domain"
)

// CheckResult is the unified result of a single probe.
//
// StatusCode is the HTTP status when a response arrived; 0 for transport
// errors. Message carries the status line or the error text for logs.
type CheckResult struct {
	Status     domain.Status
	StatusCode int
	LatencyMS  float64
	Message    string
}

func (r CheckResult) Up() bool { return r.Status == domain.StatusUp }

// Checker performs a single liveness check for a target URL. It never
// fails: every problem is reported as a DOWN result.
type Checker interface {
	Check(ctx context.Context, target string) CheckResult
}

// CheckerFunc adapts a plain function to Checker.
type CheckerFunc func(ctx context.Context, target string) CheckResult

func (f CheckerFunc) Check(ctx context.Context, target string) CheckResult { return f(ctx, target) }
