package resilience

import (
	"sync"
	"time"
)

// RetryBudgetConfig configures a sliding-window retry budget.
// The budget caps the aggregate fraction of traffic that may be retries,
// no matter how many individual callers are backing off.
type RetryBudgetConfig struct {
	// Window is the sliding time window the ratio is measured over.
	Window time.Duration
	// Ratio is the ceiling on retries/total within the window (0.0 to 1.0).
	Ratio float64
	// MinCalls is the call volume below which retries are always allowed,
	// so the very first failure in an idle window can still be retried.
	MinCalls int
}

// DefaultRetryBudgetConfig returns sensible defaults: at most 10% of calls
// in the trailing minute may be retries.
func DefaultRetryBudgetConfig() RetryBudgetConfig {
	return RetryBudgetConfig{
		Window:   60 * time.Second,
		Ratio:    0.10,
		MinCalls: 10,
	}
}

// RetryBudgetStats is a point-in-time snapshot, safe to serialize.
type RetryBudgetStats struct {
	TotalCalls   int     `json:"total_calls"`
	TotalRetries int     `json:"total_retries"`
	RetryRate    float64 `json:"retry_rate"`
	Ratio        float64 `json:"ratio"`
}

// RetryBudget tracks total versus retried calls within a sliding window and
// answers whether one more retry would exceed the configured ceiling.
type RetryBudget struct {
	config RetryBudgetConfig

	mu      sync.Mutex
	calls   []time.Time
	retries []time.Time
}

// NewRetryBudget creates a new retry budget.
func NewRetryBudget(config RetryBudgetConfig) *RetryBudget {
	if config.Window <= 0 {
		config.Window = 60 * time.Second
	}
	if config.Ratio <= 0 {
		config.Ratio = 0.10
	}
	if config.MinCalls <= 0 {
		config.MinCalls = 10
	}
	return &RetryBudget{config: config}
}

// RecordCall records one call (any attempt, first or retried).
func (rb *RetryBudget) RecordCall() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.prune(time.Now())
	rb.calls = append(rb.calls, time.Now())
}

// RecordRetry records one retried call.
func (rb *RetryBudget) RecordRetry() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.prune(time.Now())
	rb.retries = append(rb.retries, time.Now())
}

// Allow reports whether recording one more retry would keep the retry rate
// at or below the ceiling.
func (rb *RetryBudget) Allow() bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.prune(time.Now())

	total := len(rb.calls)
	if total < rb.config.MinCalls {
		return true
	}
	return float64(len(rb.retries)+1)/float64(total) <= rb.config.Ratio
}

// Rate returns the current retries/total ratio within the window.
func (rb *RetryBudget) Rate() float64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.prune(time.Now())

	if len(rb.calls) == 0 {
		return 0
	}
	return float64(len(rb.retries)) / float64(len(rb.calls))
}

// Stats returns a snapshot of the budget.
func (rb *RetryBudget) Stats() RetryBudgetStats {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.prune(time.Now())

	stats := RetryBudgetStats{
		TotalCalls:   len(rb.calls),
		TotalRetries: len(rb.retries),
		Ratio:        rb.config.Ratio,
	}
	if stats.TotalCalls > 0 {
		stats.RetryRate = float64(stats.TotalRetries) / float64(stats.TotalCalls)
	}
	return stats
}

// prune drops timestamps older than the window. Callers must hold rb.mu.
func (rb *RetryBudget) prune(now time.Time) {
	cutoff := now.Add(-rb.config.Window)
	rb.calls = pruneBefore(rb.calls, cutoff)
	rb.retries = pruneBefore(rb.retries, cutoff)
}

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(ts) && ts[idx].Before(cutoff) {
		idx++
	}
	if idx == 0 {
		return ts
	}
	return append(ts[:0], ts[idx:]...)
}
