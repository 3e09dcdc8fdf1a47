package resilience

import (
	"testing"
	"time"
)

func TestPercentileTracker_Empty(t *testing.T) {
	pt := NewPercentileTracker(100)

	if pt.Count() != 0 {
		t.Errorf("expected 0 samples, got %d", pt.Count())
	}
	if pt.P95() != 0 {
		t.Errorf("expected 0 with no samples, got %v", pt.P95())
	}
}

func TestPercentileTracker_KnownDistribution(t *testing.T) {
	pt := NewPercentileTracker(1000)

	// 1ms through 100ms, one sample each.
	for i := 1; i <= 100; i++ {
		pt.Record(time.Duration(i) * time.Millisecond)
	}

	tests := []struct {
		p    float64
		want time.Duration
	}{
		{50, 50 * time.Millisecond},
		{95, 95 * time.Millisecond},
		{99, 99 * time.Millisecond},
		{100, 100 * time.Millisecond},
	}

	for _, tt := range tests {
		if got := pt.Percentile(tt.p); got != tt.want {
			t.Errorf("P%.1f: expected %v, got %v", tt.p, tt.want, got)
		}
	}
}

func TestPercentileTracker_SingleSample(t *testing.T) {
	pt := NewPercentileTracker(10)
	pt.Record(42 * time.Millisecond)

	for _, p := range []float64{1, 50, 99.9} {
		if got := pt.Percentile(p); got != 42*time.Millisecond {
			t.Errorf("P%.1f: expected 42ms, got %v", p, got)
		}
	}
}

func TestPercentileTracker_RingOverwritesOldest(t *testing.T) {
	pt := NewPercentileTracker(3)

	pt.Record(1 * time.Millisecond)
	pt.Record(2 * time.Millisecond)
	pt.Record(3 * time.Millisecond)
	pt.Record(100 * time.Millisecond) // overwrites the 1ms sample

	if pt.Count() != 3 {
		t.Fatalf("expected count capped at 3, got %d", pt.Count())
	}
	// Window now holds {2ms, 3ms, 100ms}; the minimum moved up.
	if got := pt.Percentile(1); got != 2*time.Millisecond {
		t.Errorf("expected min 2ms, got %v", got)
	}
	if got := pt.Percentile(100); got != 100*time.Millisecond {
		t.Errorf("expected max 100ms, got %v", got)
	}
}

func TestPercentileTracker_InsertionOrderIrrelevant(t *testing.T) {
	a := NewPercentileTracker(100)
	b := NewPercentileTracker(100)

	for i := 1; i <= 20; i++ {
		a.Record(time.Duration(i) * time.Millisecond)
		b.Record(time.Duration(21-i) * time.Millisecond)
	}

	if a.P95() != b.P95() {
		t.Errorf("order changed P95: %v vs %v", a.P95(), b.P95())
	}
}
