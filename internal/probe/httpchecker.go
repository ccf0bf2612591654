package probe

import (
	"context"
	"net/http"
	"time"

	"github.com/hamed0406/uptimenotifier/internal/domain"
	"github.com/hamed0406/uptimenotifier/internal/metrics"
)

// acceptable is the fixed set of status codes that count as UP.
var acceptable = map[int]bool{
	http.StatusOK:               true,
	http.StatusMultipleChoices:  true,
	http.StatusMovedPermanently: true,
	http.StatusFound:            true,
	http.StatusSeeOther:         true,
}

// IsAcceptable reports whether code is one of 200, 300, 301, 302, 303.
func IsAcceptable(code int) bool { return acceptable[code] }

type HTTPChecker struct {
	Client *http.Client
}

// NewHTTPChecker returns a checker that issues one GET per call and does
// not follow redirects, so a 3xx answer is classified on its own.
func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		Client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (h *HTTPChecker) Check(ctx context.Context, target string) CheckResult {
	out := h.check(ctx, target)
	metrics.ProbesTotal.WithLabelValues(out.Status.String()).Inc()
	return out
}

func (h *HTTPChecker) check(ctx context.Context, target string) CheckResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return CheckResult{Status: domain.StatusDown, Message: err.Error()}
	}
	req.Header.Set("User-Agent", "uptimenotifier/1.0")

	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		return CheckResult{Status: domain.StatusDown, Message: err.Error(), LatencyMS: latency}
	}
	defer resp.Body.Close()

	return CheckResult{
		Status:     domain.StatusFromBool(IsAcceptable(resp.StatusCode)),
		StatusCode: resp.StatusCode,
		Message:    resp.Status,
		LatencyMS:  latency,
	}
}
