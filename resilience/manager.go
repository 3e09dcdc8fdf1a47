package resilience

import (
	"context"
	"time"

	reserrors "github.com/skillsenselab/reskit/errors"
	"github.com/skillsenselab/reskit/logger"
)

// ManagerConfig configures a retry manager.
type ManagerConfig struct {
	// Name identifies the protected dependency for metrics/logging.
	Name string
	// Retry governs attempt count, backoff, and error classification.
	Retry RetryConfig
	// Budget caps the aggregate retry ratio within a sliding window.
	Budget RetryBudgetConfig
	// Idempotency configures the result cache for keyed calls.
	Idempotency IdempotencyConfig
	// AdaptiveTimeout, when set, bounds each attempt with a deadline derived
	// from observed latency and is fed every attempt's latency.
	AdaptiveTimeout *AdaptiveTimeout
	// Logger receives retry/budget events. Nil uses the package global.
	Logger *logger.Logger
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig(name string) ManagerConfig {
	return ManagerConfig{
		Name:        name,
		Retry:       DefaultRetryConfig(),
		Budget:      DefaultRetryBudgetConfig(),
		Idempotency: DefaultIdempotencyConfig(),
	}
}

// RetryManagerStats is a point-in-time snapshot, safe to serialize.
type RetryManagerStats struct {
	Name               string           `json:"name"`
	MaxAttempts        int              `json:"max_attempts"`
	Budget             RetryBudgetStats `json:"budget"`
	IdempotencyEntries int              `json:"idempotency_entries"`
}

// Manager orchestrates conditional retry: delay computation, the retry
// budget, and the idempotency cache. Individual attempts run under the
// adaptive timeout when one is configured.
type Manager struct {
	config  ManagerConfig
	budget  *RetryBudget
	cache   *IdempotencyCache
	timeout *AdaptiveTimeout
	log     *logger.Logger
}

// NewManager creates a new retry manager.
func NewManager(config ManagerConfig) *Manager {
	config.Retry.applyDefaults()

	log := config.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Manager{
		config:  config,
		budget:  NewRetryBudget(config.Budget),
		cache:   NewIdempotencyCache(config.Idempotency),
		timeout: config.AdaptiveTimeout,
		log:     log.WithComponent("retry_manager").WithDependency(config.Name),
	}
}

// Budget exposes the manager's retry budget.
func (m *Manager) Budget() *RetryBudget { return m.budget }

// Stats returns a snapshot of the manager.
func (m *Manager) Stats() RetryManagerStats {
	return RetryManagerStats{
		Name:               m.config.Name,
		MaxAttempts:        m.config.Retry.MaxAttempts,
		Budget:             m.budget.Stats(),
		IdempotencyEntries: m.cache.Len(),
	}
}

// Execute runs fn with conditional retry. When an idempotency key is
// supplied and a live record exists, the cached result is returned without
// invoking fn; on success with a key, the result is stored before return.
//
// A retry is only attempted when the error classifies as retryable, attempts
// remain, and the retry budget allows it; a budget rejection fails fast with
// a RETRY_BUDGET_EXCEEDED error rather than sleeping.
func (m *Manager) Execute(ctx context.Context, fn func(context.Context) (any, error), opts ...CallOption) (any, error) {
	o := applyCallOptions(opts)

	if o.idempotencyKey != "" {
		if cached, ok := m.cache.Get(o.idempotencyKey); ok {
			m.log.Debug("idempotency cache hit", logger.Fields("key", o.idempotencyKey))
			return cached, nil
		}
	}

	cfg := m.config.Retry
	retryIf := cfg.RetryIf
	if o.retryIf != nil {
		retryIf = o.retryIf
	}

	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		result, err := m.attempt(ctx, fn)
		if err == nil {
			if o.idempotencyKey != "" {
				m.cache.Set(o.idempotencyKey, result)
			}
			return result, nil
		}

		lastErr = err

		if !retryIf(err) {
			return nil, err
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		if !m.budget.Allow() {
			stats := m.budget.Stats()
			m.log.Warn("retry budget exhausted, failing fast", logger.Fields(
				"retry_rate", stats.RetryRate,
				"ceiling", stats.Ratio,
			))
			return nil, reserrors.RetryBudgetExceeded(m.config.Name, stats.RetryRate, stats.Ratio).
				WithCause(ErrRetryBudgetExceeded)
		}

		backoff := calculateBackoff(attempt, cfg)

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, backoff)
		}
		m.log.Debug("retrying after backoff", logger.Fields(
			logger.FieldAttempt, attempt,
			"backoff_ms", backoff.Milliseconds(),
			logger.FieldError, err.Error(),
		))

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		m.budget.RecordRetry()
	}

	return nil, reserrors.MaxRetriesExceeded(m.config.Name, cfg.MaxAttempts, lastErr)
}

// attempt runs one invocation of fn under a fresh per-attempt deadline and
// records its latency.
func (m *Manager) attempt(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	m.budget.RecordCall()

	attemptCtx := ctx
	if m.timeout != nil {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, m.timeout.Timeout())
		defer cancel()
	}

	start := time.Now()
	result, err := fn(attemptCtx)
	if m.timeout != nil {
		m.timeout.Record(time.Since(start))
	}
	return result, err
}

// Do runs fn through the manager with a typed result.
func Do[T any](ctx context.Context, m *Manager, fn func(context.Context) (T, error), opts ...CallOption) (T, error) {
	result, err := m.Execute(ctx, func(ctx context.Context) (any, error) {
		return fn(ctx)
	}, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	typed, ok := result.(T)
	if !ok {
		var zero T
		return zero, nil
	}
	return typed, nil
}
