package resilience

import (
	"sync"
	"time"

	"github.com/skillsenselab/reskit/logger"
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed allows requests to pass through.
	StateClosed State = iota
	// StateOpen blocks all requests.
	StateOpen
	// StateHalfOpen allows limited requests to test recovery.
	StateHalfOpen
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures a circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies the protected dependency for metrics/logging.
	Name string
	// FailureThreshold is the number of consecutive qualifying failures
	// before the circuit opens.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive successes in half-open
	// before the circuit closes.
	SuccessThreshold int
	// Timeout is how long the circuit stays open before allowing a probe.
	// The transition is evaluated lazily on the next call, not by a timer.
	Timeout time.Duration
	// ExpectedErrors decides which errors count toward breaker state.
	// Errors it rejects propagate to the caller without being recorded.
	// Nil counts every error.
	ExpectedErrors func(error) bool
	// OnStateChange is called when state changes.
	OnStateChange func(name string, from, to State)
	// Logger receives state-change events. Nil uses the package global.
	Logger *logger.Logger
}

// DefaultCircuitBreakerConfig returns sensible defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: 5,
		SuccessThreshold: 3,
		Timeout:          60 * time.Second,
	}
}

// CircuitBreakerStats is a point-in-time snapshot, safe to serialize.
type CircuitBreakerStats struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Failures        int       `json:"failure_count"`
	Successes       int       `json:"success_count"`
	LastFailureTime time.Time `json:"last_failure_time,omitzero"`
}

// CircuitBreaker implements the circuit breaker pattern.
// It prevents cascading failures by failing fast when a dependency is
// unhealthy.
//
// States:
//   - Closed: normal operation, requests pass through
//   - Open: dependency is unhealthy, requests fail immediately
//   - Half-Open: testing recovery, one probe call at a time is let through
//     and a single failure reopens the circuit
type CircuitBreaker struct {
	config CircuitBreakerConfig
	log    *logger.Logger

	mu              sync.Mutex
	state           State
	failures        int
	successes       int
	probing         bool
	lastFailureTime time.Time
	openedAt        time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}

	log := config.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &CircuitBreaker{
		config: config,
		log:    log.WithComponent("circuit_breaker").WithDependency(config.Name),
		state:  StateClosed,
	}
}

// Execute runs the given function through the circuit breaker.
// Returns ErrCircuitOpen without invoking fn if the circuit is open, or if
// another call already holds the single half-open probe slot.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, ok := cb.admit()
	if !ok {
		return ErrCircuitOpen
	}

	err := fn()
	cb.recordResult(err, probe)
	return err
}

// State returns the current circuit breaker state, applying the lazy
// open-to-half-open transition if the open timeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.currentState()
}

// Stats returns a snapshot of the breaker without invoking the protected
// call.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return CircuitBreakerStats{
		Name:            cb.config.Name,
		State:           cb.currentState().String(),
		Failures:        cb.failures,
		Successes:       cb.successes,
		LastFailureTime: cb.lastFailureTime,
	}
}

// Reset resets the circuit breaker to closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.toState(StateClosed)
	cb.failures = 0
	cb.successes = 0
}

// Failures returns the current failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// admit checks if a request should be allowed. In the half-open state only
// one probe call may be in flight at a time; probe reports whether this
// call took the slot.
func (cb *CircuitBreaker) admit() (probe, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.currentState() {
	case StateClosed:
		return false, true
	case StateHalfOpen:
		if cb.probing {
			return false, false
		}
		cb.probing = true
		return true, true
	default:
		return false, false
	}
}

// recordResult records the result of a request, releasing the half-open
// probe slot if this call held it. Errors rejected by the ExpectedErrors
// predicate do not affect breaker state.
func (cb *CircuitBreaker) recordResult(err error, probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		cb.probing = false
	}

	if err != nil && cb.config.ExpectedErrors != nil && !cb.config.ExpectedErrors(err) {
		return
	}

	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
}

// onSuccess handles a successful request.
func (cb *CircuitBreaker) onSuccess() {
	switch cb.currentState() {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.SuccessThreshold {
			cb.toState(StateClosed)
		}
	}
}

// onFailure handles a failed request.
func (cb *CircuitBreaker) onFailure() {
	cb.lastFailureTime = time.Now()

	switch cb.currentState() {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.toState(StateOpen)
		}
	case StateHalfOpen:
		// A single failure while probing reopens the circuit.
		cb.toState(StateOpen)
	}
}

// currentState returns the current state, handling the lazy timeout
// transition. Callers must hold cb.mu.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.config.Timeout {
		cb.toState(StateHalfOpen)
	}
	return cb.state
}

// toState transitions to a new state. Callers must hold cb.mu.
func (cb *CircuitBreaker) toState(to State) {
	if cb.state == to {
		return
	}

	from := cb.state
	cb.state = to

	switch to {
	case StateClosed:
		cb.failures = 0
		cb.successes = 0
	case StateHalfOpen:
		cb.successes = 0
		cb.probing = false
	case StateOpen:
		cb.successes = 0
		cb.openedAt = time.Now()
	}

	cb.log.Info("circuit state changed", logger.Fields(
		"from", from.String(),
		"to", to.String(),
		"failures", cb.failures,
	))

	if cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, from, to)
	}
}
