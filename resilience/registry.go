package resilience

import (
	"sync"
	"time"

	"github.com/skillsenselab/reskit/logger"
)

// PolicySet bundles optional per-dependency configs applied on first
// creation. Nil fields fall back to defaults.
type PolicySet struct {
	CircuitBreaker *CircuitBreakerConfig
	Retry          *ManagerConfig
	Bulkhead       *BulkheadConfig
	Timeout        *AdaptiveTimeoutConfig
}

// ComprehensiveStats aggregates every live component's stats keyed by
// dependency name. The whole structure is JSON-serializable; an external
// exporter polls it; the engine performs no network I/O of its own.
type ComprehensiveStats struct {
	Timestamp        time.Time                       `json:"timestamp"`
	CircuitBreakers  map[string]CircuitBreakerStats  `json:"circuit_breakers"`
	RetryManagers    map[string]RetryManagerStats    `json:"retry_managers"`
	Bulkheads        map[string]BulkheadStats        `json:"bulkheads"`
	AdaptiveTimeouts map[string]AdaptiveTimeoutStats `json:"adaptive_timeouts"`
	RateLimiters     map[string]RateLimiterStats     `json:"rate_limiters"`
}

// Registry creates and retrieves named resilience components per logical
// dependency. Creation is idempotent per (name, kind): repeated calls with
// the same name return the same instance, which is what lets breaker and
// bulkhead state accumulate across calls.
//
// A Registry is explicitly constructed and passed to whatever composes the
// call path, so tests can run isolated registries without cross-test
// leakage. Components live for the life of the registry.
type Registry struct {
	log *logger.Logger

	mu        sync.RWMutex
	breakers  map[string]*CircuitBreaker
	managers  map[string]*Manager
	bulkheads map[string]*Bulkhead
	timeouts  map[string]*AdaptiveTimeout
	limiters  map[string]Limiter
}

// RegistryOption customizes a registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger inherited by components the registry creates.
func WithLogger(log *logger.Logger) RegistryOption {
	return func(r *Registry) { r.log = log }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		breakers:  make(map[string]*CircuitBreaker),
		managers:  make(map[string]*Manager),
		bulkheads: make(map[string]*Bulkhead),
		timeouts:  make(map[string]*AdaptiveTimeout),
		limiters:  make(map[string]Limiter),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.GetGlobalLogger()
	}
	return r
}

// Configure pre-creates the components for a dependency from a policy set.
// Components that already exist are left untouched.
func (r *Registry) Configure(name string, ps PolicySet) {
	if ps.Timeout != nil {
		r.AdaptiveTimeout(name, ps.Timeout)
	}
	if ps.CircuitBreaker != nil {
		r.CircuitBreaker(name, ps.CircuitBreaker)
	}
	if ps.Retry != nil {
		r.RetryManager(name, ps.Retry)
	}
	if ps.Bulkhead != nil {
		r.Bulkhead(name, ps.Bulkhead)
	}
}

// CircuitBreaker returns the breaker for name, creating it on first use.
// A nil config means defaults.
func (r *Registry) CircuitBreaker(name string, config *CircuitBreakerConfig) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[name]; ok {
		return cb
	}

	cfg := DefaultCircuitBreakerConfig(name)
	if config != nil {
		cfg = *config
	}
	cfg.Name = name
	if cfg.Logger == nil {
		cfg.Logger = r.log
	}

	cb = NewCircuitBreaker(cfg)
	r.breakers[name] = cb
	return cb
}

// RetryManager returns the retry manager for name, creating it on first
// use. The manager shares the dependency's adaptive timeout so every
// attempt it makes is deadline-bounded. A nil config means defaults.
func (r *Registry) RetryManager(name string, config *ManagerConfig) *Manager {
	r.mu.RLock()
	m, ok := r.managers[name]
	r.mu.RUnlock()
	if ok {
		return m
	}

	at := r.AdaptiveTimeout(name, nil)

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.managers[name]; ok {
		return m
	}

	cfg := DefaultManagerConfig(name)
	if config != nil {
		cfg = *config
	}
	cfg.Name = name
	if cfg.AdaptiveTimeout == nil {
		cfg.AdaptiveTimeout = at
	}
	if cfg.Logger == nil {
		cfg.Logger = r.log
	}

	m = NewManager(cfg)
	r.managers[name] = m
	return m
}

// Bulkhead returns the bulkhead for name, creating it on first use.
// A nil config means defaults.
func (r *Registry) Bulkhead(name string, config *BulkheadConfig) *Bulkhead {
	r.mu.RLock()
	b, ok := r.bulkheads[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bulkheads[name]; ok {
		return b
	}

	cfg := DefaultBulkheadConfig(name)
	if config != nil {
		cfg = *config
	}
	cfg.Name = name
	if cfg.Logger == nil {
		cfg.Logger = r.log
	}

	b = NewBulkhead(cfg)
	r.bulkheads[name] = b
	return b
}

// AdaptiveTimeout returns the adaptive timeout for name, creating it on
// first use. A nil config means defaults.
func (r *Registry) AdaptiveTimeout(name string, config *AdaptiveTimeoutConfig) *AdaptiveTimeout {
	r.mu.RLock()
	at, ok := r.timeouts[name]
	r.mu.RUnlock()
	if ok {
		return at
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if at, ok := r.timeouts[name]; ok {
		return at
	}

	cfg := DefaultAdaptiveTimeoutConfig(name)
	if config != nil {
		cfg = *config
	}
	cfg.Name = name

	at = NewAdaptiveTimeout(cfg)
	r.timeouts[name] = at
	return at
}

// RegisterLimiter installs a rate limiter under name, returning the
// existing one if already registered.
func (r *Registry) RegisterLimiter(name string, limiter Limiter) Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.limiters[name]; ok {
		return existing
	}
	r.limiters[name] = limiter
	return limiter
}

// Limiter returns the rate limiter registered under name, or nil.
func (r *Registry) Limiter(name string) Limiter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limiters[name]
}

// Stats returns one aggregated snapshot of every live component.
func (r *Registry) Stats() ComprehensiveStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := ComprehensiveStats{
		Timestamp:        time.Now().UTC(),
		CircuitBreakers:  make(map[string]CircuitBreakerStats, len(r.breakers)),
		RetryManagers:    make(map[string]RetryManagerStats, len(r.managers)),
		Bulkheads:        make(map[string]BulkheadStats, len(r.bulkheads)),
		AdaptiveTimeouts: make(map[string]AdaptiveTimeoutStats, len(r.timeouts)),
		RateLimiters:     make(map[string]RateLimiterStats, len(r.limiters)),
	}

	for name, cb := range r.breakers {
		stats.CircuitBreakers[name] = cb.Stats()
	}
	for name, m := range r.managers {
		stats.RetryManagers[name] = m.Stats()
	}
	for name, b := range r.bulkheads {
		stats.Bulkheads[name] = b.Stats()
	}
	for name, at := range r.timeouts {
		stats.AdaptiveTimeouts[name] = at.Stats()
	}
	for name, l := range r.limiters {
		stats.RateLimiters[name] = l.Stats()
	}

	return stats
}
