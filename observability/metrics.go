package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/skillsenselab/reskit/resilience"
)

// EngineMetrics holds the push-style instruments for protected calls.
// Components stay metrics-free; callers record from the composition layer.
type EngineMetrics struct {
	callTotal         metric.Int64Counter
	callDuration      metric.Float64Histogram
	retryTotal        metric.Int64Counter
	rejectionTotal    metric.Int64Counter
	fallbackTotal     metric.Int64Counter
	breakerTransTotal metric.Int64Counter
}

// NewEngineMetrics creates the engine's metric instruments on a meter.
func NewEngineMetrics(meter metric.Meter) (*EngineMetrics, error) {
	callTotal, err := meter.Int64Counter("resilience.call.total",
		metric.WithDescription("Protected calls by dependency and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.call.total: %w", err)
	}

	callDuration, err := meter.Float64Histogram("resilience.call.duration",
		metric.WithDescription("Protected call duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.call.duration: %w", err)
	}

	retryTotal, err := meter.Int64Counter("resilience.retry.total",
		metric.WithDescription("Retry attempts by dependency"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.retry.total: %w", err)
	}

	rejectionTotal, err := meter.Int64Counter("resilience.rejection.total",
		metric.WithDescription("Protective rejections by dependency and reason"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.rejection.total: %w", err)
	}

	fallbackTotal, err := meter.Int64Counter("resilience.fallback.total",
		metric.WithDescription("Fallback activations by dependency and level"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.fallback.total: %w", err)
	}

	breakerTransTotal, err := meter.Int64Counter("resilience.breaker.transition.total",
		metric.WithDescription("Circuit breaker state transitions by dependency"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.breaker.transition.total: %w", err)
	}

	return &EngineMetrics{
		callTotal:         callTotal,
		callDuration:      callDuration,
		retryTotal:        retryTotal,
		rejectionTotal:    rejectionTotal,
		fallbackTotal:     fallbackTotal,
		breakerTransTotal: breakerTransTotal,
	}, nil
}

// RecordCall records one completed protected call.
func (m *EngineMetrics) RecordCall(ctx context.Context, dependency, outcome string, duration time.Duration) {
	m.callTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dependency", dependency),
		attribute.String("outcome", outcome),
	))
	m.callDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("dependency", dependency),
	))
}

// RecordRetry records one retry attempt.
func (m *EngineMetrics) RecordRetry(ctx context.Context, dependency string, attempt int) {
	m.retryTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dependency", dependency),
		attribute.Int("attempt", attempt),
	))
}

// RecordRejection records one protective rejection (circuit open, bulkhead
// full, budget exceeded, rate limited).
func (m *EngineMetrics) RecordRejection(ctx context.Context, dependency, reason string) {
	m.rejectionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dependency", dependency),
		attribute.String("reason", reason),
	))
}

// RecordFallback records one fallback chain activation.
func (m *EngineMetrics) RecordFallback(ctx context.Context, dependency, level string) {
	m.fallbackTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("dependency", dependency),
		attribute.String("level", level),
	))
}

// BreakerCallback returns an OnStateChange hook that counts transitions.
func (m *EngineMetrics) BreakerCallback() func(name string, from, to resilience.State) {
	return func(name string, from, to resilience.State) {
		m.breakerTransTotal.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("dependency", name),
			attribute.String("from", from.String()),
			attribute.String("to", to.String()),
		))
	}
}

// breaker state gauge encoding
const (
	gaugeClosed   = 0
	gaugeOpen     = 1
	gaugeHalfOpen = 2
)

// RegisterStatsObserver registers observable gauges that pull one registry
// snapshot per collection cycle: breaker state, bulkhead saturation, retry
// rate, adaptive timeout, and limiter level. The registry itself never
// pushes; this is the only bridge between engine state and the exporter.
func RegisterStatsObserver(meter metric.Meter, reg *resilience.Registry) (metric.Registration, error) {
	breakerState, err := meter.Int64ObservableGauge("resilience.breaker.state",
		metric.WithDescription("Circuit breaker state (0 closed, 1 open, 2 half-open)"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.breaker.state: %w", err)
	}

	bulkheadActive, err := meter.Int64ObservableGauge("resilience.bulkhead.active",
		metric.WithDescription("Permits currently held per dependency"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.bulkhead.active: %w", err)
	}

	bulkheadQueued, err := meter.Int64ObservableGauge("resilience.bulkhead.queued",
		metric.WithDescription("Calls waiting for a permit per dependency"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.bulkhead.queued: %w", err)
	}

	retryRate, err := meter.Float64ObservableGauge("resilience.retry.rate",
		metric.WithDescription("Retries over total calls in the budget window"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.retry.rate: %w", err)
	}

	adaptiveTimeout, err := meter.Int64ObservableGauge("resilience.timeout.current",
		metric.WithDescription("Current adaptive timeout in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.timeout.current: %w", err)
	}

	limiterLevel, err := meter.Float64ObservableGauge("resilience.limiter.level",
		metric.WithDescription("Rate limiter fill level"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resilience.limiter.level: %w", err)
	}

	return meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			stats := reg.Stats()

			for name, cb := range stats.CircuitBreakers {
				attrs := metric.WithAttributes(attribute.String("dependency", name))
				o.ObserveInt64(breakerState, breakerStateValue(cb.State), attrs)
			}
			for name, bh := range stats.Bulkheads {
				attrs := metric.WithAttributes(attribute.String("dependency", name))
				o.ObserveInt64(bulkheadActive, int64(bh.ActiveCalls), attrs)
				o.ObserveInt64(bulkheadQueued, int64(bh.QueuedCalls), attrs)
			}
			for name, rm := range stats.RetryManagers {
				attrs := metric.WithAttributes(attribute.String("dependency", name))
				o.ObserveFloat64(retryRate, rm.Budget.RetryRate, attrs)
			}
			for name, at := range stats.AdaptiveTimeouts {
				attrs := metric.WithAttributes(attribute.String("dependency", name))
				o.ObserveInt64(adaptiveTimeout, at.TimeoutMs, attrs)
			}
			for name, rl := range stats.RateLimiters {
				attrs := metric.WithAttributes(
					attribute.String("dependency", name),
					attribute.String("kind", rl.Kind),
				)
				o.ObserveFloat64(limiterLevel, rl.Level, attrs)
			}
			return nil
		},
		breakerState, bulkheadActive, bulkheadQueued, retryRate, adaptiveTimeout, limiterLevel,
	)
}

func breakerStateValue(state string) int64 {
	switch state {
	case "open":
		return gaugeOpen
	case "half-open":
		return gaugeHalfOpen
	default:
		return gaugeClosed
	}
}
