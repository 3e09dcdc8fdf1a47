package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Protective rejections: the engine refused the call before attempting it.
const (
	// ErrCodeCircuitOpen indicates the circuit breaker is open and the call was never attempted.
	ErrCodeCircuitOpen ErrorCode = "CIRCUIT_OPEN"
	// ErrCodeRetryBudgetExceeded indicates the aggregate retry ceiling was reached.
	ErrCodeRetryBudgetExceeded ErrorCode = "RETRY_BUDGET_EXCEEDED"
	// ErrCodeBulkheadFull indicates both the concurrency pool and its queue are saturated.
	ErrCodeBulkheadFull ErrorCode = "BULKHEAD_FULL"
	// ErrCodeBulkheadTimeout indicates a queued call was not serviced within the queue timeout.
	ErrCodeBulkheadTimeout ErrorCode = "BULKHEAD_TIMEOUT"
	// ErrCodeRateLimited indicates a rate limiter denied admission.
	ErrCodeRateLimited ErrorCode = "RATE_LIMITED"
)

// Degradation and downstream errors.
const (
	// ErrCodeFallbacksExhausted indicates every registered fallback handler failed.
	ErrCodeFallbacksExhausted ErrorCode = "FALLBACKS_EXHAUSTED"
	// ErrCodeTimeout indicates the call exceeded its deadline.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeMaxRetriesExceeded indicates all retry attempts were used.
	ErrCodeMaxRetriesExceeded ErrorCode = "MAX_RETRIES_EXCEEDED"
	// ErrCodeUnhealthy indicates a health probe reports a dependency as down.
	ErrCodeUnhealthy ErrorCode = "UNHEALTHY"
)

// Configuration errors.
const (
	// ErrCodeInvalidInput indicates a configuration value or argument is invalid.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// A rate-limited or timed-out call can be retried by the caller after
// backing off. A breaker rejection must not be retried from outside, since
// the breaker already encodes backoff via its open timeout, and a budget
// rejection exists precisely to stop further retries.
var retryableCodes = map[ErrorCode]bool{
	ErrCodeRateLimited:     true,
	ErrCodeTimeout:         true,
	ErrCodeBulkheadTimeout: true,
	ErrCodeBulkheadFull:    true,
}

// IsRetryableCode reports whether an error code represents a condition
// the caller may reasonably retry.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
