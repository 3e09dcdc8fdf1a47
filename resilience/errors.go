package resilience

import "errors"

// Sentinel errors for the engine's protective rejections. The structured
// equivalents with codes and HTTP mappings live in the errors package;
// callers that only need errors.Is can match on these.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open and the
	// protected call was never attempted.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrRetryBudgetExceeded is returned when a retry was suppressed because
	// the sliding-window retry ratio hit its ceiling.
	ErrRetryBudgetExceeded = errors.New("retry budget exceeded")
	// ErrBulkheadFull is returned when the concurrency pool and queue are
	// both saturated.
	ErrBulkheadFull = errors.New("bulkhead is full")
	// ErrBulkheadTimeout is returned when a queued call was not serviced
	// within the queue wait timeout.
	ErrBulkheadTimeout = errors.New("bulkhead wait timeout")
	// ErrRateLimited is returned when a rate limiter denies admission.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrFallbacksExhausted is returned when every registered fallback
	// handler, including DEFAULT if present, failed.
	ErrFallbacksExhausted = errors.New("all fallbacks exhausted")
	// ErrMaxRetriesExceeded is returned when all retry attempts were used.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)
