package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/skillsenselab/reskit/logger"
)

// CheckKind classifies what a probe's result should gate.
type CheckKind string

const (
	// KindLiveness gates process restarts: is the process itself functional.
	KindLiveness CheckKind = "liveness"
	// KindReadiness gates traffic admission: can the service do useful work.
	KindReadiness CheckKind = "readiness"
	// KindDeep exercises a dependency end to end; expensive, diagnostic.
	KindDeep CheckKind = "deep"
)

// Status is the reported state of a probe.
type Status string

const (
	// StatusHealthy means the last check succeeded.
	StatusHealthy Status = "healthy"
	// StatusDegraded means recent checks failed but the failure streak is
	// still inside the grace period.
	StatusDegraded Status = "degraded"
	// StatusUnhealthy means the failure streak reached the grace period.
	StatusUnhealthy Status = "unhealthy"
)

// CheckFunc performs one probe. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// ProbeConfig configures one registered probe.
type ProbeConfig struct {
	// Interval is how often the background loop runs this probe.
	Interval time.Duration
	// Timeout bounds one probe execution.
	Timeout time.Duration
	// GracePeriodFailures is how many consecutive failures flip a healthy
	// probe to unhealthy. Recovery takes a single success.
	GracePeriodFailures int
}

// DefaultProbeConfig returns sensible defaults.
func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		Interval:            10 * time.Second,
		Timeout:             5 * time.Second,
		GracePeriodFailures: 3,
	}
}

// Result is a point-in-time snapshot of one probe, safe to serialize.
type Result struct {
	Name                string    `json:"name"`
	Kind                CheckKind `json:"kind"`
	Status              Status    `json:"status"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastChecked         time.Time `json:"last_checked,omitzero"`
	LastError           string    `json:"last_error,omitempty"`
	LatencyMs           int64     `json:"latency_ms"`
}

type probe struct {
	name   string
	kind   CheckKind
	fn     CheckFunc
	config ProbeConfig

	mu       sync.Mutex
	status   Status
	failures int
	checked  time.Time
	lastErr  error
	latency  time.Duration
}

// Checker owns a set of registered probes and an optional background loop
// that runs each probe on its own interval.
type Checker struct {
	log *logger.Logger

	mu     sync.RWMutex
	probes map[string]*probe

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewChecker creates an empty checker.
func NewChecker(log *logger.Logger) *Checker {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Checker{
		log:    log.WithComponent("health"),
		probes: make(map[string]*probe),
	}
}

// Register adds a probe. Registering an existing name replaces the probe
// and resets its state. New probes start healthy; a dependency is presumed
// fine until proven otherwise, mirroring the grace period's bias against
// flapping.
func (c *Checker) Register(name string, kind CheckKind, fn CheckFunc, config ProbeConfig) {
	if config.Interval <= 0 {
		config.Interval = 10 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.GracePeriodFailures <= 0 {
		config.GracePeriodFailures = 3
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes[name] = &probe{
		name:   name,
		kind:   kind,
		fn:     fn,
		config: config,
		status: StatusHealthy,
	}
}

// Check runs one probe immediately and returns its error, updating the
// tracked state the same way the background loop would.
func (c *Checker) Check(ctx context.Context, name string) error {
	c.mu.RLock()
	p, ok := c.probes[name]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("health: no probe registered as %q", name)
	}
	return c.run(ctx, p)
}

// CheckAll runs every probe of the given kind immediately. An empty kind
// runs everything.
func (c *Checker) CheckAll(ctx context.Context, kind CheckKind) {
	for _, p := range c.snapshot(kind) {
		_ = c.run(ctx, p)
	}
}

// Results returns snapshots of every probe of the given kind, or all probes
// when kind is empty.
func (c *Checker) Results(kind CheckKind) []Result {
	probes := c.snapshot(kind)
	results := make([]Result, 0, len(probes))
	for _, p := range probes {
		p.mu.Lock()
		r := Result{
			Name:                p.name,
			Kind:                p.kind,
			Status:              p.status,
			ConsecutiveFailures: p.failures,
			LastChecked:         p.checked,
			LatencyMs:           p.latency.Milliseconds(),
		}
		if p.lastErr != nil {
			r.LastError = p.lastErr.Error()
		}
		p.mu.Unlock()
		results = append(results, r)
	}
	return results
}

// Healthy reports whether no probe of the given kind is unhealthy.
// Degraded probes still count as healthy; they are inside the grace period.
func (c *Checker) Healthy(kind CheckKind) bool {
	for _, r := range c.Results(kind) {
		if r.Status == StatusUnhealthy {
			return false
		}
	}
	return true
}

// Start launches the background loop. Each probe runs on its own interval
// until Stop is called or ctx is cancelled. Calling Start twice without an
// intervening Stop is a no-op.
func (c *Checker) Start(ctx context.Context) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done

	probes := c.snapshot("")
	var wg sync.WaitGroup
	for _, p := range probes {
		wg.Add(1)
		go func(p *probe) {
			defer wg.Done()
			c.loop(ctx, p)
		}(p)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	c.log.Info("health checker started", logger.Fields("probes", len(probes)))
}

// Stop halts the background loop and waits for in-flight probes to finish.
func (c *Checker) Stop() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.cancel = nil
	c.done = nil
	c.log.Info("health checker stopped")
}

func (c *Checker) loop(ctx context.Context, p *probe) {
	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// One immediate pass so fresh probes have real state before the first
	// interval elapses.
	_ = c.run(ctx, p)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.run(ctx, p)
		}
	}
}

// run executes one probe with its timeout and applies the asymmetric state
// transition.
func (c *Checker) run(ctx context.Context, p *probe) error {
	probeCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	start := time.Now()
	err := p.fn(probeCtx)
	elapsed := time.Since(start)

	p.mu.Lock()
	p.checked = time.Now()
	p.latency = elapsed
	p.lastErr = err

	if err == nil {
		if p.status != StatusHealthy {
			c.log.Info("probe recovered", logger.Fields(
				logger.FieldProbe, p.name,
				"after_failures", p.failures,
			))
		}
		p.failures = 0
		p.status = StatusHealthy
		p.mu.Unlock()
		return nil
	}

	p.failures++
	switch {
	case p.failures >= p.config.GracePeriodFailures:
		if p.status != StatusUnhealthy {
			c.log.Warn("probe unhealthy", logger.Fields(
				logger.FieldProbe, p.name,
				"consecutive_failures", p.failures,
				logger.FieldError, err.Error(),
			))
		}
		p.status = StatusUnhealthy
	default:
		p.status = StatusDegraded
		c.log.Debug("probe failed within grace period", logger.Fields(
			logger.FieldProbe, p.name,
			"consecutive_failures", p.failures,
		))
	}
	p.mu.Unlock()
	return err
}

// snapshot returns the probes matching kind under the read lock.
func (c *Checker) snapshot(kind CheckKind) []*probe {
	c.mu.RLock()
	defer c.mu.RUnlock()
	probes := make([]*probe, 0, len(c.probes))
	for _, p := range c.probes {
		if kind == "" || p.kind == kind {
			probes = append(probes, p)
		}
	}
	return probes
}
