package resilience

import (
	"context"
	"sync"
	"time"
)

// Limiter is the common shape of the three rate-limiting algorithms.
type Limiter interface {
	// Allow reports whether one request is admitted right now.
	Allow() bool
	// AllowN reports whether n requests are admitted right now.
	AllowN(n int) bool
	// Stats returns a serializable snapshot.
	Stats() RateLimiterStats
}

// RateLimiterStats is a point-in-time snapshot, safe to serialize.
type RateLimiterStats struct {
	Name    string  `json:"name"`
	Kind    string  `json:"kind"`
	Allowed int64   `json:"allowed_total"`
	Denied  int64   `json:"denied_total"`
	Level   float64 `json:"level"`
	Limit   float64 `json:"limit"`
}

// --- Token bucket ---

// TokenBucketConfig configures a token bucket limiter.
type TokenBucketConfig struct {
	// Name identifies this limiter for metrics/logging.
	Name string
	// RefillRate is the number of tokens added per second.
	RefillRate float64
	// Capacity is the maximum burst size.
	Capacity int
	// OnLimit is called when a request is denied.
	OnLimit func(name string)
}

// DefaultTokenBucketConfig returns sensible defaults.
func DefaultTokenBucketConfig(name string) TokenBucketConfig {
	return TokenBucketConfig{
		Name:       name,
		RefillRate: 10.0,
		Capacity:   20,
	}
}

// TokenBucket admits short bursts up to Capacity and refills lazily on every
// call. Starts full.
type TokenBucket struct {
	config TokenBucketConfig

	mu         sync.Mutex
	tokens     float64
	lastRefill time.Time
	allowed    int64
	denied     int64
}

// NewTokenBucket creates a new token bucket limiter.
func NewTokenBucket(config TokenBucketConfig) *TokenBucket {
	if config.RefillRate <= 0 {
		config.RefillRate = 10.0
	}
	if config.Capacity <= 0 {
		config.Capacity = int(config.RefillRate)
	}

	return &TokenBucket{
		config:     config,
		tokens:     float64(config.Capacity),
		lastRefill: time.Now(),
	}
}

// Allow checks if a request is allowed without blocking.
func (tb *TokenBucket) Allow() bool {
	return tb.AllowN(1)
}

// AllowN checks if n requests are allowed without blocking.
func (tb *TokenBucket) AllowN(n int) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens >= float64(n) {
		tb.tokens -= float64(n)
		tb.allowed += int64(n)
		return true
	}

	tb.denied++
	if tb.config.OnLimit != nil {
		tb.config.OnLimit(tb.config.Name)
	}
	return false
}

// Wait blocks until a request is allowed or the context is cancelled.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	if tb.AllowN(1) {
		return nil
	}

	waitTime := tb.reserve()
	if waitTime <= 0 {
		return nil
	}

	timer := time.NewTimer(waitTime)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Execute runs fn if the limiter admits it, else returns ErrRateLimited.
func (tb *TokenBucket) Execute(fn func() error) error {
	if !tb.Allow() {
		return ErrRateLimited
	}
	return fn()
}

// Tokens returns the current number of available tokens.
func (tb *TokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return tb.tokens
}

// Stats returns a snapshot of the bucket.
func (tb *TokenBucket) Stats() RateLimiterStats {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refill()
	return RateLimiterStats{
		Name:    tb.config.Name,
		Kind:    "token_bucket",
		Allowed: tb.allowed,
		Denied:  tb.denied,
		Level:   tb.tokens,
		Limit:   float64(tb.config.Capacity),
	}
}

// refill adds tokens based on elapsed time. Callers must hold tb.mu.
func (tb *TokenBucket) refill() {
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.lastRefill = now

	tb.tokens += elapsed * tb.config.RefillRate
	if tb.tokens > float64(tb.config.Capacity) {
		tb.tokens = float64(tb.config.Capacity)
	}
}

// reserve consumes one token ahead of time and returns how long to wait.
func (tb *TokenBucket) reserve() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens >= 1 {
		tb.tokens--
		return 0
	}

	needed := 1 - tb.tokens
	tb.tokens--
	return time.Duration(needed / tb.config.RefillRate * float64(time.Second))
}

// --- Sliding window counter ---

// SlidingWindowConfig configures a sliding-window limiter.
type SlidingWindowConfig struct {
	// Name identifies this limiter for metrics/logging.
	Name string
	// Limit is the number of calls admitted within the trailing window.
	Limit int
	// Window is the trailing window length.
	Window time.Duration
	// OnLimit is called when a request is denied.
	OnLimit func(name string)
}

// DefaultSlidingWindowConfig returns sensible defaults.
func DefaultSlidingWindowConfig(name string) SlidingWindowConfig {
	return SlidingWindowConfig{
		Name:   name,
		Limit:  100,
		Window: time.Second,
	}
}

// SlidingWindowCounter admits a call while fewer than Limit timestamps fall
// inside the trailing window. Unlike a fixed window there is no double-burst
// exploit at the window boundary.
type SlidingWindowCounter struct {
	config SlidingWindowConfig

	mu      sync.Mutex
	times   []time.Time
	allowed int64
	denied  int64
}

// NewSlidingWindowCounter creates a new sliding-window limiter.
func NewSlidingWindowCounter(config SlidingWindowConfig) *SlidingWindowCounter {
	if config.Limit <= 0 {
		config.Limit = 100
	}
	if config.Window <= 0 {
		config.Window = time.Second
	}
	return &SlidingWindowCounter{config: config}
}

// Allow checks if a request is allowed without blocking.
func (sw *SlidingWindowCounter) Allow() bool {
	return sw.AllowN(1)
}

// AllowN checks if n requests are allowed without blocking.
func (sw *SlidingWindowCounter) AllowN(n int) bool {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	now := time.Now()
	sw.times = pruneBefore(sw.times, now.Add(-sw.config.Window))

	if len(sw.times)+n <= sw.config.Limit {
		for i := 0; i < n; i++ {
			sw.times = append(sw.times, now)
		}
		sw.allowed += int64(n)
		return true
	}

	sw.denied++
	if sw.config.OnLimit != nil {
		sw.config.OnLimit(sw.config.Name)
	}
	return false
}

// Count returns the number of admitted calls within the trailing window.
func (sw *SlidingWindowCounter) Count() int {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.times = pruneBefore(sw.times, time.Now().Add(-sw.config.Window))
	return len(sw.times)
}

// Stats returns a snapshot of the counter.
func (sw *SlidingWindowCounter) Stats() RateLimiterStats {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.times = pruneBefore(sw.times, time.Now().Add(-sw.config.Window))
	return RateLimiterStats{
		Name:    sw.config.Name,
		Kind:    "sliding_window",
		Allowed: sw.allowed,
		Denied:  sw.denied,
		Level:   float64(len(sw.times)),
		Limit:   float64(sw.config.Limit),
	}
}

// --- Leaky bucket ---

// LeakyBucketConfig configures a leaky-bucket limiter.
type LeakyBucketConfig struct {
	// Name identifies this limiter for metrics/logging.
	Name string
	// Capacity is the bucket depth.
	Capacity float64
	// LeakRate is how fast the bucket drains, per second.
	LeakRate float64
	// OnLimit is called when a request is denied.
	OnLimit func(name string)
}

// DefaultLeakyBucketConfig returns sensible defaults.
func DefaultLeakyBucketConfig(name string) LeakyBucketConfig {
	return LeakyBucketConfig{
		Name:     name,
		Capacity: 20,
		LeakRate: 10.0,
	}
}

// LeakyBucket smooths admission into a constant outbound rate: each admitted
// call raises the queue level by one, the level drains at LeakRate, and
// calls are denied while the level is at capacity.
type LeakyBucket struct {
	config LeakyBucketConfig

	mu       sync.Mutex
	level    float64
	lastLeak time.Time
	allowed  int64
	denied   int64
}

// NewLeakyBucket creates a new leaky-bucket limiter.
func NewLeakyBucket(config LeakyBucketConfig) *LeakyBucket {
	if config.Capacity <= 0 {
		config.Capacity = 20
	}
	if config.LeakRate <= 0 {
		config.LeakRate = 10.0
	}
	return &LeakyBucket{
		config:   config,
		lastLeak: time.Now(),
	}
}

// Allow checks if a request is allowed without blocking.
func (lb *LeakyBucket) Allow() bool {
	return lb.AllowN(1)
}

// AllowN checks if n requests are allowed without blocking.
func (lb *LeakyBucket) AllowN(n int) bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.leak()

	if lb.level+float64(n-1) < lb.config.Capacity {
		lb.level += float64(n)
		lb.allowed += int64(n)
		return true
	}

	lb.denied++
	if lb.config.OnLimit != nil {
		lb.config.OnLimit(lb.config.Name)
	}
	return false
}

// Level returns the current queue level.
func (lb *LeakyBucket) Level() float64 {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.leak()
	return lb.level
}

// Stats returns a snapshot of the bucket.
func (lb *LeakyBucket) Stats() RateLimiterStats {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.leak()
	return RateLimiterStats{
		Name:    lb.config.Name,
		Kind:    "leaky_bucket",
		Allowed: lb.allowed,
		Denied:  lb.denied,
		Level:   lb.level,
		Limit:   lb.config.Capacity,
	}
}

// leak drains the bucket based on elapsed time. Callers must hold lb.mu.
func (lb *LeakyBucket) leak() {
	now := time.Now()
	elapsed := now.Sub(lb.lastLeak).Seconds()
	lb.lastLeak = now

	lb.level -= elapsed * lb.config.LeakRate
	if lb.level < 0 {
		lb.level = 0
	}
}
