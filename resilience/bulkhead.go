package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/skillsenselab/reskit/logger"
)

// Priority orders bulkhead queue admission when PriorityEnabled is set.
type Priority int

const (
	// PriorityLow is served after all other queued work.
	PriorityLow Priority = iota
	// PriorityNormal is the default.
	PriorityNormal
	// PriorityHigh is served first.
	PriorityHigh
)

// String returns the priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// BulkheadConfig configures a bulkhead.
type BulkheadConfig struct {
	// Name identifies the protected dependency for metrics/logging.
	Name string
	// MaxConcurrent is the maximum number of concurrent calls.
	MaxConcurrent int
	// MaxQueueSize is how many calls may wait for a permit. When the queue
	// is also full, calls are rejected immediately.
	MaxQueueSize int
	// MaxWait is how long a queued call waits for a permit.
	MaxWait time.Duration
	// PriorityEnabled orders the queue by priority; ties within a priority
	// level stay FIFO. Disabled means plain FIFO.
	PriorityEnabled bool
	// OnReject is called when a request is rejected.
	OnReject func(name string)
	// Logger receives rejection events. Nil uses the package global.
	Logger *logger.Logger
}

// DefaultBulkheadConfig returns sensible defaults.
func DefaultBulkheadConfig(name string) BulkheadConfig {
	return BulkheadConfig{
		Name:          name,
		MaxConcurrent: 100,
		MaxQueueSize:  200,
		MaxWait:       30 * time.Second,
	}
}

// BulkheadStats is a point-in-time snapshot, safe to serialize.
type BulkheadStats struct {
	Name          string `json:"name"`
	MaxConcurrent int    `json:"max_concurrent"`
	ActiveCalls   int    `json:"active_calls"`
	QueuedCalls   int    `json:"queued_calls"`
	Rejected      int64  `json:"rejected_total"`
	Timeouts      int64  `json:"timeout_total"`
}

// waiter is one queued call waiting for a permit.
type waiter struct {
	ready   chan struct{}
	granted bool
}

// Bulkhead implements bounded-concurrency isolation with a bounded,
// optionally priority-ordered wait queue. It isolates concurrency budgets
// per dependency so saturation of one dependency cannot starve calls to an
// unrelated one in the same process.
type Bulkhead struct {
	config BulkheadConfig
	log    *logger.Logger

	mu       sync.Mutex
	active   int
	queues   [3][]*waiter // indexed by Priority, served high to low
	queued   int
	rejected int64
	timeouts int64
}

// NewBulkhead creates a new bulkhead.
func NewBulkhead(config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 100
	}
	if config.MaxQueueSize < 0 {
		config.MaxQueueSize = 0
	}
	if config.MaxWait <= 0 {
		config.MaxWait = 30 * time.Second
	}

	log := config.Logger
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	return &Bulkhead{
		config: config,
		log:    log.WithComponent("bulkhead").WithDependency(config.Name),
	}
}

// Execute runs fn at normal priority.
func (b *Bulkhead) Execute(ctx context.Context, fn func() error) error {
	return b.ExecutePriority(ctx, PriorityNormal, fn)
}

// ExecutePriority runs fn once a permit is available, queueing at the given
// priority if the pool is saturated. The permit is released unconditionally
// when fn returns.
func (b *Bulkhead) ExecutePriority(ctx context.Context, priority Priority, fn func() error) error {
	if err := b.acquire(ctx, priority); err != nil {
		if b.config.OnReject != nil {
			b.config.OnReject(b.config.Name)
		}
		return err
	}

	defer b.release()
	return fn()
}

// ExecuteWithResult runs a function that returns a value through the
// bulkhead.
func ExecuteWithResult[T any](ctx context.Context, b *Bulkhead, priority Priority, fn func() (T, error)) (T, error) {
	var result T
	err := b.ExecutePriority(ctx, priority, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	return result, err
}

// Stats returns a snapshot of the bulkhead.
func (b *Bulkhead) Stats() BulkheadStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BulkheadStats{
		Name:          b.config.Name,
		MaxConcurrent: b.config.MaxConcurrent,
		ActiveCalls:   b.active,
		QueuedCalls:   b.queued,
		Rejected:      b.rejected,
		Timeouts:      b.timeouts,
	}
}

// InUse returns the number of permits currently held.
func (b *Bulkhead) InUse() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Queued returns the number of calls waiting for a permit.
func (b *Bulkhead) Queued() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queued
}

// MaxWait returns the configured bound on queue wait time.
func (b *Bulkhead) MaxWait() time.Duration {
	return b.config.MaxWait
}

// acquire obtains a permit immediately, or queues up to MaxWait.
func (b *Bulkhead) acquire(ctx context.Context, priority Priority) error {
	b.mu.Lock()

	if b.active < b.config.MaxConcurrent {
		b.active++
		b.mu.Unlock()
		return nil
	}

	if b.queued >= b.config.MaxQueueSize {
		b.rejected++
		b.mu.Unlock()
		b.log.Warn("bulkhead saturated, rejecting call", logger.Fields(
			logger.FieldPriority, priority.String(),
		))
		return ErrBulkheadFull
	}

	if !b.config.PriorityEnabled {
		priority = PriorityNormal
	}
	w := &waiter{ready: make(chan struct{})}
	b.queues[priority] = append(b.queues[priority], w)
	b.queued++
	b.mu.Unlock()

	timer := time.NewTimer(b.config.MaxWait)
	defer timer.Stop()

	select {
	case <-w.ready:
		return nil
	case <-timer.C:
		if b.abandon(w) {
			b.mu.Lock()
			b.timeouts++
			b.mu.Unlock()
			return ErrBulkheadTimeout
		}
		// The permit was handed over racing the timeout; keep it.
		return nil
	case <-ctx.Done():
		if b.abandon(w) {
			return ctx.Err()
		}
		return nil
	}
}

// release hands the permit to the highest-priority waiter, or frees it.
func (b *Bulkhead) release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for p := PriorityHigh; p >= PriorityLow; p-- {
		if len(b.queues[p]) == 0 {
			continue
		}
		w := b.queues[p][0]
		b.queues[p] = b.queues[p][1:]
		b.queued--
		w.granted = true
		close(w.ready)
		return
	}

	b.active--
}

// abandon removes w from its queue. Returns false when the permit was
// already granted, in which case the caller now owns it.
func (b *Bulkhead) abandon(w *waiter) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if w.granted {
		return false
	}
	for p := range b.queues {
		for i, queued := range b.queues[p] {
			if queued == w {
				b.queues[p] = append(b.queues[p][:i], b.queues[p][i+1:]...)
				b.queued--
				return true
			}
		}
	}
	return true
}
