package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/skillsenselab/reskit/resilience"
)

const testYAML = `
service: checkout
environment: staging
logging:
  level: debug
  format: console
defaults:
  retry:
    max_attempts: 2
dependencies:
  payments:
    circuit_breaker:
      failure_threshold: 3
      success_threshold: 2
      timeout: 30s
    retry:
      max_attempts: 5
      base_delay: 50ms
      budget_ratio: 0.2
    bulkhead:
      max_concurrent: 10
      max_queue_size: 20
      max_wait: 5s
      priority_enabled: true
    timeout:
      adaptive: true
      default: 10s
      multiplier: 2.0
    rate_limit:
      kind: token_bucket
      rate: 100
      capacity: 200
  search:
    rate_limit:
      kind: sliding_window
      limit: 50
      window: 1s
`

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(testYAML), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoad_FromYAML(t *testing.T) {
	var cfg EngineConfig
	err := Load("checkout", &cfg, WithConfigFile(writeTestConfig(t)))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Service != "checkout" {
		t.Errorf("expected service checkout, got %s", cfg.Service)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Logging.Level)
	}

	payments, ok := cfg.Dependencies["payments"]
	if !ok {
		t.Fatal("expected payments dependency")
	}
	if payments.CircuitBreaker.FailureThreshold != 3 {
		t.Errorf("expected failure threshold 3, got %d", payments.CircuitBreaker.FailureThreshold)
	}
	if payments.CircuitBreaker.Timeout != 30*time.Second {
		t.Errorf("expected 30s timeout, got %v", payments.CircuitBreaker.Timeout)
	}
	if payments.Retry.MaxAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", payments.Retry.MaxAttempts)
	}
	if payments.Retry.BaseDelay != 50*time.Millisecond {
		t.Errorf("expected 50ms base delay, got %v", payments.Retry.BaseDelay)
	}
	if !payments.Bulkhead.PriorityEnabled {
		t.Error("expected priority enabled")
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("SERVICE", "from-env")

	var cfg EngineConfig
	err := Load("checkout", &cfg, WithConfigFile(writeTestConfig(t)))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Service != "from-env" {
		t.Errorf("expected env override, got %s", cfg.Service)
	}
}

func TestLoad_MissingFilesIsNotAnError(t *testing.T) {
	var cfg EngineConfig
	err := Load("nonexistent-service", &cfg,
		WithConfigFile(filepath.Join(t.TempDir(), "absent.yml")))
	if err != nil {
		t.Fatalf("expected missing config tolerated, got %v", err)
	}
}

func TestEngineConfig_ApplyDefaults(t *testing.T) {
	cfg := EngineConfig{Service: "svc"}
	cfg.ApplyDefaults()

	if cfg.Environment != "development" {
		t.Errorf("expected development, got %s", cfg.Environment)
	}
	if cfg.Logging.Level == "" {
		t.Error("expected logging defaults applied")
	}
}

func TestEngineConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     EngineConfig
		wantErr bool
	}{
		{
			name:    "valid",
			cfg:     EngineConfig{Service: "svc", Environment: "production"},
			wantErr: false,
		},
		{
			name:    "missing service",
			cfg:     EngineConfig{Environment: "production"},
			wantErr: true,
		},
		{
			name:    "bad environment",
			cfg:     EngineConfig{Service: "svc", Environment: "prod"},
			wantErr: true,
		},
		{
			name: "jitter out of range",
			cfg: EngineConfig{
				Service: "svc",
				Dependencies: map[string]PolicyConfig{
					"db": {Retry: RetrySettings{Jitter: 1.5}},
				},
			},
			wantErr: true,
		},
		{
			name: "bad limiter kind",
			cfg: EngineConfig{
				Service: "svc",
				Dependencies: map[string]PolicyConfig{
					"db": {RateLimit: RateLimitSettings{Kind: "fixed_window"}},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestEngineConfig_PolicyFallsBackToDefaults(t *testing.T) {
	cfg := EngineConfig{
		Service:  "svc",
		Defaults: PolicyConfig{Retry: RetrySettings{MaxAttempts: 2}},
		Dependencies: map[string]PolicyConfig{
			"payments": {Retry: RetrySettings{MaxAttempts: 7}},
		},
	}

	if got := cfg.Policy("payments").Retry.MaxAttempts; got != 7 {
		t.Errorf("expected 7, got %d", got)
	}
	if got := cfg.Policy("unknown").Retry.MaxAttempts; got != 2 {
		t.Errorf("expected defaults for unknown dependency, got %d", got)
	}
}

func TestPolicyConfig_Build(t *testing.T) {
	p := PolicyConfig{
		CircuitBreaker: CircuitBreakerSettings{FailureThreshold: 3, Timeout: 30 * time.Second},
		Retry:          RetrySettings{MaxAttempts: 5, BudgetRatio: 0.2},
		Bulkhead:       BulkheadSettings{MaxConcurrent: 10},
	}

	ps := p.Build("payments")
	if ps.CircuitBreaker.FailureThreshold != 3 {
		t.Errorf("expected threshold 3, got %d", ps.CircuitBreaker.FailureThreshold)
	}
	if ps.Retry.Retry.MaxAttempts != 5 {
		t.Errorf("expected 5 attempts, got %d", ps.Retry.Retry.MaxAttempts)
	}
	if ps.Retry.Budget.Ratio != 0.2 {
		t.Errorf("expected budget ratio 0.2, got %f", ps.Retry.Budget.Ratio)
	}
	// Unset retry knobs keep engine defaults.
	if ps.Retry.Retry.BaseDelay != 100*time.Millisecond {
		t.Errorf("expected default base delay, got %v", ps.Retry.Retry.BaseDelay)
	}
	if ps.Bulkhead.MaxConcurrent != 10 {
		t.Errorf("expected max concurrent 10, got %d", ps.Bulkhead.MaxConcurrent)
	}
}

func TestPolicyConfig_BuildLimiter(t *testing.T) {
	tests := []struct {
		kind     string
		wantKind string
	}{
		{"token_bucket", "token_bucket"},
		{"sliding_window", "sliding_window"},
		{"leaky_bucket", "leaky_bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			p := PolicyConfig{RateLimit: RateLimitSettings{
				Kind: tt.kind, Rate: 10, Capacity: 20, Limit: 30, Window: time.Second,
			}}
			l := p.BuildLimiter("api")
			if l == nil {
				t.Fatal("expected limiter")
			}
			if got := l.Stats().Kind; got != tt.wantKind {
				t.Errorf("expected %s, got %s", tt.wantKind, got)
			}
		})
	}

	if (PolicyConfig{}).BuildLimiter("api") != nil {
		t.Error("expected nil limiter when no kind configured")
	}
}

func TestEngineConfig_Apply(t *testing.T) {
	var cfg EngineConfig
	if err := Load("checkout", &cfg, WithConfigFile(writeTestConfig(t))); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	reg := resilience.NewRegistry()
	cfg.Apply(reg)

	cb := reg.CircuitBreaker("payments", nil)
	if cb.Stats().Name != "payments" {
		t.Errorf("expected configured breaker, got %s", cb.Stats().Name)
	}
	if reg.Limiter("payments") == nil {
		t.Error("expected payments limiter registered")
	}
	if reg.Limiter("search") == nil {
		t.Error("expected search limiter registered")
	}

	stats := reg.Stats()
	if len(stats.CircuitBreakers) != 2 {
		t.Errorf("expected 2 configured breakers, got %d", len(stats.CircuitBreakers))
	}
}
