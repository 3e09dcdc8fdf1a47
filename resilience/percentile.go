package resilience

import (
	"sort"
	"sync"
	"time"
)

// PercentileTracker keeps a bounded ring buffer of the most recent latency
// samples and computes percentiles from a sorted copy on demand.
type PercentileTracker struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
}

// NewPercentileTracker creates a tracker holding the last size samples.
func NewPercentileTracker(size int) *PercentileTracker {
	if size <= 0 {
		size = 1000
	}
	return &PercentileTracker{
		samples: make([]time.Duration, size),
	}
}

// Record adds one latency sample, overwriting the oldest once full.
func (pt *PercentileTracker) Record(d time.Duration) {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	pt.samples[pt.next] = d
	pt.next++
	if pt.next == len(pt.samples) {
		pt.next = 0
		pt.full = true
	}
}

// Count returns the number of recorded samples, capped at the window size.
func (pt *PercentileTracker) Count() int {
	pt.mu.Lock()
	defer pt.mu.Unlock()
	return pt.countLocked()
}

func (pt *PercentileTracker) countLocked() int {
	if pt.full {
		return len(pt.samples)
	}
	return pt.next
}

// Percentile returns the p-th percentile (0 < p <= 100) of the recorded
// samples, or 0 when no samples exist.
func (pt *PercentileTracker) Percentile(p float64) time.Duration {
	pt.mu.Lock()
	defer pt.mu.Unlock()

	n := pt.countLocked()
	if n == 0 || p <= 0 {
		return 0
	}
	if p > 100 {
		p = 100
	}

	sorted := make([]time.Duration, n)
	copy(sorted, pt.samples[:n])
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(n)*p/100+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// P50 returns the median latency.
func (pt *PercentileTracker) P50() time.Duration { return pt.Percentile(50) }

// P95 returns the 95th percentile latency.
func (pt *PercentileTracker) P95() time.Duration { return pt.Percentile(95) }

// P99 returns the 99th percentile latency.
func (pt *PercentileTracker) P99() time.Duration { return pt.Percentile(99) }

// P999 returns the 99.9th percentile latency.
func (pt *PercentileTracker) P999() time.Duration { return pt.Percentile(99.9) }
