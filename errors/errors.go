// Package errors provides the structured error taxonomy for the resilience
// engine. Every protective rejection the engine can make (circuit open,
// budget exceeded, bulkhead full, rate limited, fallbacks exhausted) is a
// typed error with a machine-readable code, an HTTP status mapping for
// callers that surface rejections over HTTP, and a retryable flag.
package errors

import (
	"fmt"
	"net/http"
	"time"
)

// AppError is the unified structured error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the caller may retry the operation.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the recommended HTTP status code for this error.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Protective rejection constructors ---

// CircuitOpen creates an AppError for a call rejected by an open circuit
// breaker. The protected call was never invoked.
func CircuitOpen(dependency string) *AppError {
	return &AppError{
		Code: ErrCodeCircuitOpen, Message: fmt.Sprintf("Circuit breaker for %s is open; call rejected without being attempted.", dependency),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: false,
		Details: map[string]any{"dependency": dependency},
	}
}

// RetryBudgetExceeded creates an AppError for a retry suppressed because the
// sliding-window retry ratio would exceed the configured ceiling.
func RetryBudgetExceeded(dependency string, rate, ceiling float64) *AppError {
	return &AppError{
		Code: ErrCodeRetryBudgetExceeded, Message: fmt.Sprintf("Retry budget for %s exhausted; failing fast instead of retrying.", dependency),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: false,
		Details: map[string]any{"dependency": dependency, "retry_rate": rate, "ceiling": ceiling},
	}
}

// BulkheadFull creates an AppError for a call rejected because the bulkhead
// pool and its wait queue are both saturated.
func BulkheadFull(dependency string) *AppError {
	return &AppError{
		Code: ErrCodeBulkheadFull, Message: fmt.Sprintf("Bulkhead for %s is saturated; call rejected without being attempted.", dependency),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"dependency": dependency},
	}
}

// BulkheadTimeout creates an AppError for a queued call that was not
// serviced within the queue wait timeout.
func BulkheadTimeout(dependency string, waited time.Duration) *AppError {
	return &AppError{
		Code: ErrCodeBulkheadTimeout, Message: fmt.Sprintf("Call to %s waited %s in the bulkhead queue without being serviced.", dependency, waited),
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"dependency": dependency, "waited_ms": waited.Milliseconds()},
	}
}

// RateLimited creates an AppError for a call denied by a rate limiter.
func RateLimited(name string) *AppError {
	return &AppError{
		Code: ErrCodeRateLimited, Message: "Too many requests. Please wait a moment and try again.",
		HTTPStatus: http.StatusTooManyRequests, Retryable: true,
		Details: map[string]any{"limiter": name},
	}
}

// --- Degradation and downstream constructors ---

// FallbacksExhausted creates an AppError for the case where every registered
// fallback handler, including DEFAULT if present, failed.
func FallbacksExhausted(dependency string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeFallbacksExhausted, Message: fmt.Sprintf("All fallback levels for %s failed.", dependency),
		HTTPStatus: http.StatusBadGateway, Retryable: false,
		Details: map[string]any{"dependency": dependency}, Cause: cause,
	}
}

// Timeout creates an AppError for a call that exceeded its deadline.
func Timeout(operation string, limit time.Duration) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The call took too long and was abandoned.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation, "timeout_ms": limit.Milliseconds()},
	}
}

// MaxRetriesExceeded creates an AppError for a call whose attempts were all
// used up. Cause carries the final attempt's error.
func MaxRetriesExceeded(dependency string, attempts int, cause error) *AppError {
	return &AppError{
		Code: ErrCodeMaxRetriesExceeded, Message: fmt.Sprintf("Call to %s failed after %d attempts.", dependency, attempts),
		HTTPStatus: http.StatusBadGateway, Retryable: false,
		Details: map[string]any{"dependency": dependency, "attempts": attempts}, Cause: cause,
	}
}

// Unhealthy creates an AppError for a probe that reports a dependency down.
func Unhealthy(probe string, consecutiveFailures int) *AppError {
	return &AppError{
		Code: ErrCodeUnhealthy, Message: fmt.Sprintf("Health probe %s is failing.", probe),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"probe": probe, "consecutive_failures": consecutiveFailures},
	}
}

// InvalidInput creates an AppError for an invalid configuration value.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}
