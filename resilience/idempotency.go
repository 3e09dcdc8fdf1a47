package resilience

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// IdempotencyConfig configures the idempotency cache.
type IdempotencyConfig struct {
	// TTL is how long a cached result stays live.
	TTL time.Duration
	// MaxEntries bounds the cache; least-recently-used records are evicted
	// first when the bound is hit.
	MaxEntries int
}

// DefaultIdempotencyConfig returns sensible defaults.
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:        time.Hour,
		MaxEntries: 10000,
	}
}

// IdempotencyCache maps caller-supplied keys to previously produced results
// so a retried or duplicated call can reuse a prior result instead of
// re-executing. Expired records are collected lazily on lookup.
type IdempotencyCache struct {
	cache *expirable.LRU[string, any]
	ttl   time.Duration
}

// NewIdempotencyCache creates a new idempotency cache.
func NewIdempotencyCache(config IdempotencyConfig) *IdempotencyCache {
	if config.TTL <= 0 {
		config.TTL = time.Hour
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 10000
	}
	return &IdempotencyCache{
		cache: expirable.NewLRU[string, any](config.MaxEntries, nil, config.TTL),
		ttl:   config.TTL,
	}
}

// Get returns the cached result for key and whether a live record exists.
func (c *IdempotencyCache) Get(key string) (any, bool) {
	return c.cache.Get(key)
}

// Set stores a result for key. Called on first successful completion.
func (c *IdempotencyCache) Set(key string, value any) {
	c.cache.Add(key, value)
}

// Len returns the number of live records.
func (c *IdempotencyCache) Len() int {
	return c.cache.Len()
}

// NewIdempotencyKey generates a fresh key for callers that want one per
// logical operation rather than deriving it from request content.
func NewIdempotencyKey() string {
	return uuid.NewString()
}
