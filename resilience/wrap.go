package resilience

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	reserrors "github.com/skillsenselab/reskit/errors"
)

const tracerName = "github.com/skillsenselab/reskit/resilience"

// Execute runs fn against the named dependency through the full policy
// chain: bulkhead admission, then the circuit breaker gate, then the retry
// loop with per-attempt adaptive timeouts. If the chain produces a final
// error and a fallback chain was attached via WithFallback, the fallback
// levels run in degradation order and the first success is returned.
//
// Components are fetched from the registry by name, so repeated calls for
// the same dependency share breaker, bulkhead, and latency state. Call
// Registry.Configure first to override defaults.
func Execute[T any](ctx context.Context, r *Registry, name string, fn func(context.Context) (T, error), opts ...CallOption) (T, error) {
	o := applyCallOptions(opts)

	bh := r.Bulkhead(name, nil)
	cb := r.CircuitBreaker(name, nil)
	rm := r.RetryManager(name, nil)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "resilience.execute",
		trace.WithAttributes(
			attribute.String("resilience.dependency", name),
			attribute.String("resilience.priority", o.priority.String()),
		))
	defer span.End()

	var result any
	err := bh.ExecutePriority(ctx, o.priority, func() error {
		return cb.Execute(func() error {
			var execErr error
			result, execErr = rm.Execute(ctx, func(ctx context.Context) (any, error) {
				return fn(ctx)
			}, opts...)
			return execErr
		})
	})

	if err == nil {
		span.SetStatus(codes.Ok, "")
		v, _ := result.(T)
		return v, nil
	}

	err = policyError(name, bh, err)
	span.RecordError(err)

	if o.fallback != nil {
		fres, ferr := o.fallback.Execute(ctx)
		if ferr == nil {
			span.SetAttributes(
				attribute.String("resilience.fallback_level", fres.Level.String()),
				attribute.Bool("resilience.degraded", fres.Degraded),
			)
			span.SetStatus(codes.Ok, "degraded")
			v, _ := fres.Value.(T)
			return v, nil
		}
		err = ferr
		span.RecordError(err)
	}

	span.SetStatus(codes.Error, err.Error())
	var zero T
	return zero, err
}

// Wrap binds fn to the named dependency's policy chain and returns a
// function with the same shape, for call sites that prefer to compose once
// and invoke many times.
func Wrap[T any](r *Registry, name string, fn func(context.Context) (T, error), opts ...CallOption) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		return Execute(ctx, r, name, fn, opts...)
	}
}

// policyError translates engine sentinels surfaced by the outer layers into
// structured application errors. Errors produced by fn, or already
// structured by the retry manager, pass through unchanged.
func policyError(name string, bh *Bulkhead, err error) error {
	var appErr *reserrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	switch {
	case errors.Is(err, ErrCircuitOpen):
		return reserrors.CircuitOpen(name).WithCause(err)
	case errors.Is(err, ErrBulkheadFull):
		return reserrors.BulkheadFull(name).WithCause(err)
	case errors.Is(err, ErrBulkheadTimeout):
		return reserrors.BulkheadTimeout(name, bh.config.MaxWait).WithCause(err)
	}
	return err
}
