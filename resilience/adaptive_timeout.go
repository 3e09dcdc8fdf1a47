package resilience

import (
	"time"
)

// AdaptiveTimeoutConfig configures latency-derived call timeouts.
type AdaptiveTimeoutConfig struct {
	// Name identifies the protected dependency for metrics/logging.
	Name string
	// Enabled selects P95-derived timeouts; false always returns Default.
	Enabled bool
	// Default is returned until enough samples exist (and always when
	// Enabled is false).
	Default time.Duration
	// Min and Max clamp the derived timeout.
	Min time.Duration
	Max time.Duration
	// Multiplier scales the observed P95 into a deadline.
	Multiplier float64
	// MinSamples is how many samples must exist before the derived value is
	// trusted over Default.
	MinSamples int
	// WindowSize is the number of latency samples retained.
	WindowSize int
}

// DefaultAdaptiveTimeoutConfig returns sensible defaults.
func DefaultAdaptiveTimeoutConfig(name string) AdaptiveTimeoutConfig {
	return AdaptiveTimeoutConfig{
		Name:       name,
		Enabled:    true,
		Default:    30 * time.Second,
		Min:        10 * time.Millisecond,
		Max:        120 * time.Second,
		Multiplier: 1.5,
		MinSamples: 10,
		WindowSize: 1000,
	}
}

// AdaptiveTimeoutStats is a point-in-time snapshot, safe to serialize.
type AdaptiveTimeoutStats struct {
	Name      string `json:"name"`
	Enabled   bool   `json:"enabled"`
	Samples   int    `json:"samples"`
	P50Ms     int64  `json:"p50_ms"`
	P95Ms     int64  `json:"p95_ms"`
	P99Ms     int64  `json:"p99_ms"`
	TimeoutMs int64  `json:"timeout_ms"`
}

// AdaptiveTimeout derives a per-call deadline from observed tail latency.
// A fixed timeout is either too tight for degraded-but-legitimate slow
// responses or too loose for fast-failing dependencies; P95 × multiplier
// keeps it self-correcting.
type AdaptiveTimeout struct {
	config  AdaptiveTimeoutConfig
	tracker *PercentileTracker
}

// NewAdaptiveTimeout creates a new adaptive timeout.
func NewAdaptiveTimeout(config AdaptiveTimeoutConfig) *AdaptiveTimeout {
	if config.Default <= 0 {
		config.Default = 30 * time.Second
	}
	if config.Min <= 0 {
		config.Min = 10 * time.Millisecond
	}
	if config.Max <= 0 {
		config.Max = 120 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 1.5
	}
	if config.MinSamples <= 0 {
		config.MinSamples = 10
	}
	if config.WindowSize <= 0 {
		config.WindowSize = 1000
	}

	return &AdaptiveTimeout{
		config:  config,
		tracker: NewPercentileTracker(config.WindowSize),
	}
}

// Record feeds one completed call's wall-clock latency into the tracker.
// Both successes and failures count; a failing dependency's latency is
// exactly what the timeout needs to adapt to.
func (at *AdaptiveTimeout) Record(d time.Duration) {
	at.tracker.Record(d)
}

// Timeout returns the deadline for the next call:
// clamp(P95 × Multiplier, Min, Max), or Default while disabled or under
// MinSamples.
func (at *AdaptiveTimeout) Timeout() time.Duration {
	if !at.config.Enabled || at.tracker.Count() < at.config.MinSamples {
		return at.config.Default
	}

	derived := time.Duration(float64(at.tracker.P95()) * at.config.Multiplier)
	if derived < at.config.Min {
		return at.config.Min
	}
	if derived > at.config.Max {
		return at.config.Max
	}
	return derived
}

// Stats returns a snapshot of the tracker and the current timeout.
func (at *AdaptiveTimeout) Stats() AdaptiveTimeoutStats {
	return AdaptiveTimeoutStats{
		Name:      at.config.Name,
		Enabled:   at.config.Enabled,
		Samples:   at.tracker.Count(),
		P50Ms:     at.tracker.P50().Milliseconds(),
		P95Ms:     at.tracker.P95().Milliseconds(),
		P99Ms:     at.tracker.P99().Milliseconds(),
		TimeoutMs: at.Timeout().Milliseconds(),
	}
}
