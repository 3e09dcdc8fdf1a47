package resilience

import (
	"testing"
	"time"
)

func TestAdaptiveTimeout_DefaultUntilEnoughSamples(t *testing.T) {
	at := NewAdaptiveTimeout(AdaptiveTimeoutConfig{
		Name:       "test",
		Enabled:    true,
		Default:    5 * time.Second,
		MinSamples: 10,
	})

	for i := 0; i < 9; i++ {
		at.Record(10 * time.Millisecond)
	}
	if got := at.Timeout(); got != 5*time.Second {
		t.Errorf("expected default 5s under sample floor, got %v", got)
	}

	at.Record(10 * time.Millisecond)
	if got := at.Timeout(); got == 5*time.Second {
		t.Error("expected derived timeout once sample floor is met")
	}
}

func TestAdaptiveTimeout_DerivesFromP95(t *testing.T) {
	at := NewAdaptiveTimeout(AdaptiveTimeoutConfig{
		Name:       "test",
		Enabled:    true,
		Default:    30 * time.Second,
		Min:        time.Millisecond,
		Max:        time.Minute,
		Multiplier: 2.0,
		MinSamples: 10,
		WindowSize: 1000,
	})

	// Uniform 100ms latency: P95 is 100ms, derived timeout 200ms.
	for i := 0; i < 100; i++ {
		at.Record(100 * time.Millisecond)
	}

	if got := at.Timeout(); got != 200*time.Millisecond {
		t.Errorf("expected 200ms, got %v", got)
	}
}

func TestAdaptiveTimeout_ClampsToMinAndMax(t *testing.T) {
	tests := []struct {
		name    string
		latency time.Duration
		want    time.Duration
	}{
		{"clamped to min", time.Millisecond, 100 * time.Millisecond},
		{"clamped to max", 10 * time.Second, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := NewAdaptiveTimeout(AdaptiveTimeoutConfig{
				Name:       "test",
				Enabled:    true,
				Default:    30 * time.Second,
				Min:        100 * time.Millisecond,
				Max:        time.Second,
				Multiplier: 1.5,
				MinSamples: 5,
			})
			for i := 0; i < 20; i++ {
				at.Record(tt.latency)
			}
			if got := at.Timeout(); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestAdaptiveTimeout_DisabledAlwaysDefault(t *testing.T) {
	at := NewAdaptiveTimeout(AdaptiveTimeoutConfig{
		Name:    "test",
		Enabled: false,
		Default: 7 * time.Second,
	})

	for i := 0; i < 100; i++ {
		at.Record(time.Millisecond)
	}

	if got := at.Timeout(); got != 7*time.Second {
		t.Errorf("expected default 7s while disabled, got %v", got)
	}
}

func TestAdaptiveTimeout_AdaptsToShiftingLatency(t *testing.T) {
	at := NewAdaptiveTimeout(AdaptiveTimeoutConfig{
		Name:       "test",
		Enabled:    true,
		Default:    30 * time.Second,
		Min:        time.Millisecond,
		Max:        time.Minute,
		Multiplier: 1.5,
		MinSamples: 10,
		WindowSize: 50,
	})

	for i := 0; i < 50; i++ {
		at.Record(10 * time.Millisecond)
	}
	fast := at.Timeout()

	// Dependency degrades; the window rolls over to slow samples.
	for i := 0; i < 50; i++ {
		at.Record(500 * time.Millisecond)
	}
	slow := at.Timeout()

	if slow <= fast {
		t.Errorf("expected timeout to grow with latency: fast=%v slow=%v", fast, slow)
	}
	if slow != 750*time.Millisecond {
		t.Errorf("expected 750ms after full rollover, got %v", slow)
	}
}

func TestAdaptiveTimeout_Stats(t *testing.T) {
	at := NewAdaptiveTimeout(DefaultAdaptiveTimeoutConfig("search"))

	for i := 0; i < 20; i++ {
		at.Record(100 * time.Millisecond)
	}

	stats := at.Stats()
	if stats.Name != "search" {
		t.Errorf("expected name search, got %s", stats.Name)
	}
	if stats.Samples != 20 {
		t.Errorf("expected 20 samples, got %d", stats.Samples)
	}
	if stats.P95Ms != 100 {
		t.Errorf("expected P95 100ms, got %d", stats.P95Ms)
	}
	if stats.TimeoutMs != 150 {
		t.Errorf("expected timeout 150ms, got %d", stats.TimeoutMs)
	}
}
