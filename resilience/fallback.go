package resilience

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"

	reserrors "github.com/skillsenselab/reskit/errors"
	"github.com/skillsenselab/reskit/logger"
)

// FallbackLevel orders alternative data sources from freshest to cheapest.
type FallbackLevel int

const (
	// LevelPrimary is the authoritative source.
	LevelPrimary FallbackLevel = iota
	// LevelReplica is a read replica of the primary.
	LevelReplica
	// LevelDistributedCache is a shared cache (e.g. Redis).
	LevelDistributedCache
	// LevelLocalCache is an in-process cache.
	LevelLocalCache
	// LevelDefault is the guaranteed terminal answer. A DEFAULT handler
	// should never fail; if it does, the chain reports exhaustion.
	LevelDefault
)

var fallbackLevels = []FallbackLevel{
	LevelPrimary, LevelReplica, LevelDistributedCache, LevelLocalCache, LevelDefault,
}

// String returns the level name.
func (l FallbackLevel) String() string {
	switch l {
	case LevelPrimary:
		return "primary"
	case LevelReplica:
		return "replica"
	case LevelDistributedCache:
		return "distributed_cache"
	case LevelLocalCache:
		return "local_cache"
	case LevelDefault:
		return "default"
	default:
		return "unknown"
	}
}

// FallbackHandler produces a value for one level of the chain.
type FallbackHandler func(ctx context.Context) (any, error)

// FallbackResult carries the value, the level that produced it, and whether
// the response is degraded (anything other than primary). Consumers use
// Degraded to, e.g., mark a response as stale.
type FallbackResult struct {
	Value    any
	Level    FallbackLevel
	Degraded bool
}

// FallbackChain is an ordered list of alternative data sources, executed
// top-down until one succeeds.
type FallbackChain struct {
	name string
	log  *logger.Logger

	mu       sync.RWMutex
	handlers map[FallbackLevel]FallbackHandler
}

// NewFallbackChain creates an empty fallback chain for a dependency.
func NewFallbackChain(name string, log *logger.Logger) *FallbackChain {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &FallbackChain{
		name:     name,
		log:      log.WithComponent("fallback").WithDependency(name),
		handlers: make(map[FallbackLevel]FallbackHandler),
	}
}

// Register installs the handler for a level, replacing any existing one.
func (fc *FallbackChain) Register(level FallbackLevel, handler FallbackHandler) *FallbackChain {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.handlers[level] = handler
	return fc
}

// Levels returns the levels that currently have a handler, in order.
func (fc *FallbackChain) Levels() []FallbackLevel {
	fc.mu.RLock()
	defer fc.mu.RUnlock()

	levels := make([]FallbackLevel, 0, len(fc.handlers))
	for _, level := range fallbackLevels {
		if _, ok := fc.handlers[level]; ok {
			levels = append(levels, level)
		}
	}
	return levels
}

// Execute tries each registered handler in ascending severity order and
// returns on the first success. When every handler fails, a failing DEFAULT
// handler included, it returns a FALLBACKS_EXHAUSTED error carrying
// the per-level failures.
func (fc *FallbackChain) Execute(ctx context.Context) (FallbackResult, error) {
	fc.mu.RLock()
	handlers := make(map[FallbackLevel]FallbackHandler, len(fc.handlers))
	for level, h := range fc.handlers {
		handlers[level] = h
	}
	fc.mu.RUnlock()

	var levelErrs []error

	for _, level := range fallbackLevels {
		handler, ok := handlers[level]
		if !ok {
			continue
		}

		value, err := handler(ctx)
		if err != nil {
			levelErrs = append(levelErrs, fmt.Errorf("%s: %w", level, err))
			fc.log.Debug("fallback level failed", logger.Fields(
				logger.FieldLevel, level.String(),
				logger.FieldError, err.Error(),
			))
			continue
		}

		if level != LevelPrimary {
			fc.log.Warn("serving degraded response", logger.Fields(
				logger.FieldLevel, level.String(),
			))
		}
		return FallbackResult{
			Value:    value,
			Level:    level,
			Degraded: level != LevelPrimary,
		}, nil
	}

	appErr := reserrors.FallbacksExhausted(fc.name, ErrFallbacksExhausted)
	if joined := joinErrors(levelErrs); joined != nil {
		appErr = appErr.WithDetail("errors", joined.Error())
	}
	return FallbackResult{}, appErr
}

// joinErrors flattens per-level failures for the exhaustion error's cause.
func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		msg := errs[0].Error()
		for _, e := range errs[1:] {
			msg += "; " + e.Error()
		}
		return fmt.Errorf("%s", msg)
	}
}

// CachedHandler adapts an expirable LRU into a LOCAL_CACHE level handler.
// It misses (fails) when the key is absent or expired.
func CachedHandler(cache *expirable.LRU[string, any], key string) FallbackHandler {
	return func(ctx context.Context) (any, error) {
		if value, ok := cache.Get(key); ok {
			return value, nil
		}
		return nil, fmt.Errorf("local cache miss for %q", key)
	}
}

// StaticHandler returns a fixed value; suitable for the DEFAULT level since
// it cannot fail.
func StaticHandler(value any) FallbackHandler {
	return func(ctx context.Context) (any, error) {
		return value, nil
	}
}
