package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/skillsenselab/reskit/health"
	"github.com/skillsenselab/reskit/logger"
	"github.com/skillsenselab/reskit/resilience"
)

// EngineConfig is the root configuration for the whole engine: logging,
// engine-wide policy defaults, and per-dependency overrides.
type EngineConfig struct {
	Service      string                  `mapstructure:"service" validate:"required"`
	Environment  string                  `mapstructure:"environment" validate:"omitempty,oneof=development staging production"`
	Logging      logger.Config           `mapstructure:"logging"`
	Defaults     PolicyConfig            `mapstructure:"defaults"`
	Dependencies map[string]PolicyConfig `mapstructure:"dependencies" validate:"dive"`
}

// PolicyConfig bundles every per-dependency knob. Zero values mean "use the
// engine default".
type PolicyConfig struct {
	CircuitBreaker CircuitBreakerSettings `mapstructure:"circuit_breaker" validate:"omitempty"`
	Retry          RetrySettings          `mapstructure:"retry" validate:"omitempty"`
	Bulkhead       BulkheadSettings       `mapstructure:"bulkhead" validate:"omitempty"`
	Timeout        TimeoutSettings        `mapstructure:"timeout" validate:"omitempty"`
	RateLimit      RateLimitSettings      `mapstructure:"rate_limit" validate:"omitempty"`
	Health         HealthSettings         `mapstructure:"health" validate:"omitempty"`
}

// CircuitBreakerSettings mirrors resilience.CircuitBreakerConfig.
type CircuitBreakerSettings struct {
	FailureThreshold int           `mapstructure:"failure_threshold" validate:"omitempty,min=1"`
	SuccessThreshold int           `mapstructure:"success_threshold" validate:"omitempty,min=1"`
	Timeout          time.Duration `mapstructure:"timeout" validate:"omitempty,min=0"`
}

// RetrySettings mirrors resilience.RetryConfig plus the retry budget.
type RetrySettings struct {
	MaxAttempts  int           `mapstructure:"max_attempts" validate:"omitempty,min=1,max=100"`
	BaseDelay    time.Duration `mapstructure:"base_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier" validate:"omitempty,gte=1"`
	Jitter       float64       `mapstructure:"jitter" validate:"gte=0,lte=1"`
	BudgetRatio  float64       `mapstructure:"budget_ratio" validate:"gte=0,lte=1"`
	BudgetWindow time.Duration `mapstructure:"budget_window"`
}

// BulkheadSettings mirrors resilience.BulkheadConfig.
type BulkheadSettings struct {
	MaxConcurrent   int           `mapstructure:"max_concurrent" validate:"omitempty,min=1"`
	MaxQueueSize    int           `mapstructure:"max_queue_size" validate:"gte=0"`
	MaxWait         time.Duration `mapstructure:"max_wait"`
	PriorityEnabled bool          `mapstructure:"priority_enabled"`
}

// TimeoutSettings mirrors resilience.AdaptiveTimeoutConfig.
type TimeoutSettings struct {
	Adaptive   bool          `mapstructure:"adaptive"`
	Default    time.Duration `mapstructure:"default"`
	Min        time.Duration `mapstructure:"min"`
	Max        time.Duration `mapstructure:"max"`
	Multiplier float64       `mapstructure:"multiplier" validate:"omitempty,gte=1"`
	MinSamples int           `mapstructure:"min_samples" validate:"gte=0"`
}

// RateLimitSettings selects and sizes one of the limiter algorithms.
type RateLimitSettings struct {
	Kind     string        `mapstructure:"kind" validate:"omitempty,oneof=token_bucket sliding_window leaky_bucket"`
	Rate     float64       `mapstructure:"rate" validate:"gte=0"`
	Capacity int           `mapstructure:"capacity" validate:"gte=0"`
	Limit    int           `mapstructure:"limit" validate:"gte=0"`
	Window   time.Duration `mapstructure:"window"`
}

// HealthSettings mirrors health.ProbeConfig.
type HealthSettings struct {
	Interval            time.Duration `mapstructure:"interval"`
	Timeout             time.Duration `mapstructure:"timeout"`
	GracePeriodFailures int           `mapstructure:"grace_period_failures" validate:"gte=0"`
}

var validate = validator.New()

// ApplyDefaults fills engine-level gaps. Per-dependency zero values stay
// zero; the resilience constructors clamp those at build time so a partial
// override never has to restate the full policy.
func (c *EngineConfig) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	c.Logging.ApplyDefaults()
}

// Validate checks tag constraints across the whole tree.
func (c *EngineConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Policy returns the effective policy for a dependency: its own entry when
// present, otherwise the engine defaults.
func (c *EngineConfig) Policy(name string) PolicyConfig {
	if p, ok := c.Dependencies[name]; ok {
		return p
	}
	return c.Defaults
}

// Apply warms up a registry with every configured dependency so the first
// call of each one starts with configured, not default, policies.
func (c *EngineConfig) Apply(reg *resilience.Registry) {
	for name, policy := range c.Dependencies {
		reg.Configure(name, policy.Build(name))
		if limiter := policy.BuildLimiter(name); limiter != nil {
			reg.RegisterLimiter(name, limiter)
		}
	}
}

// Build converts the declarative policy into component configs for one
// dependency.
func (p PolicyConfig) Build(name string) resilience.PolicySet {
	cb := resilience.CircuitBreakerConfig{
		Name:             name,
		FailureThreshold: p.CircuitBreaker.FailureThreshold,
		SuccessThreshold: p.CircuitBreaker.SuccessThreshold,
		Timeout:          p.CircuitBreaker.Timeout,
	}

	retry := resilience.DefaultManagerConfig(name)
	if p.Retry.MaxAttempts > 0 {
		retry.Retry.MaxAttempts = p.Retry.MaxAttempts
	}
	if p.Retry.BaseDelay > 0 {
		retry.Retry.BaseDelay = p.Retry.BaseDelay
	}
	if p.Retry.MaxDelay > 0 {
		retry.Retry.MaxDelay = p.Retry.MaxDelay
	}
	if p.Retry.Multiplier > 0 {
		retry.Retry.Multiplier = p.Retry.Multiplier
	}
	if p.Retry.Jitter > 0 {
		retry.Retry.Jitter = p.Retry.Jitter
	}
	if p.Retry.BudgetRatio > 0 {
		retry.Budget.Ratio = p.Retry.BudgetRatio
	}
	if p.Retry.BudgetWindow > 0 {
		retry.Budget.Window = p.Retry.BudgetWindow
	}

	bulkhead := resilience.BulkheadConfig{
		Name:            name,
		MaxConcurrent:   p.Bulkhead.MaxConcurrent,
		MaxQueueSize:    p.Bulkhead.MaxQueueSize,
		MaxWait:         p.Bulkhead.MaxWait,
		PriorityEnabled: p.Bulkhead.PriorityEnabled,
	}

	timeout := resilience.AdaptiveTimeoutConfig{
		Name:       name,
		Enabled:    p.Timeout.Adaptive,
		Default:    p.Timeout.Default,
		Min:        p.Timeout.Min,
		Max:        p.Timeout.Max,
		Multiplier: p.Timeout.Multiplier,
		MinSamples: p.Timeout.MinSamples,
	}

	return resilience.PolicySet{
		CircuitBreaker: &cb,
		Retry:          &retry,
		Bulkhead:       &bulkhead,
		Timeout:        &timeout,
	}
}

// BuildLimiter constructs the configured rate limiter, or nil when no kind
// is set.
func (p PolicyConfig) BuildLimiter(name string) resilience.Limiter {
	switch p.RateLimit.Kind {
	case "token_bucket":
		return resilience.NewTokenBucket(resilience.TokenBucketConfig{
			Name:       name,
			RefillRate: p.RateLimit.Rate,
			Capacity:   p.RateLimit.Capacity,
		})
	case "sliding_window":
		return resilience.NewSlidingWindowCounter(resilience.SlidingWindowConfig{
			Name:   name,
			Limit:  p.RateLimit.Limit,
			Window: p.RateLimit.Window,
		})
	case "leaky_bucket":
		return resilience.NewLeakyBucket(resilience.LeakyBucketConfig{
			Name:     name,
			Capacity: float64(p.RateLimit.Capacity),
			LeakRate: p.RateLimit.Rate,
		})
	default:
		return nil
	}
}

// BuildProbe converts health settings into a probe config.
func (p PolicyConfig) BuildProbe() health.ProbeConfig {
	cfg := health.DefaultProbeConfig()
	if p.Health.Interval > 0 {
		cfg.Interval = p.Health.Interval
	}
	if p.Health.Timeout > 0 {
		cfg.Timeout = p.Health.Timeout
	}
	if p.Health.GracePeriodFailures > 0 {
		cfg.GracePeriodFailures = p.Health.GracePeriodFailures
	}
	return cfg
}
