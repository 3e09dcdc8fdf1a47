// Package resilience protects calls to unreliable downstream dependencies.
//
// This package includes:
//   - CircuitBreaker: fails fast once a dependency keeps failing
//   - Manager: retries with exponential backoff, a retry budget, and an
//     idempotency cache
//   - Bulkhead: bounded concurrency with a bounded, optionally
//     priority-ordered wait queue
//   - AdaptiveTimeout: per-call deadlines derived from observed P95 latency
//   - FallbackChain: ordered alternative data sources tried on failure
//   - TokenBucket, SlidingWindowCounter, LeakyBucket: rate-limiting
//     primitives behind one Limiter shape
//   - Registry: named, process-lifetime instances of all of the above plus
//     one aggregated stats snapshot
//
// The pieces compose through Execute, which runs a unit of work through
// bulkhead admission, the circuit breaker gate, the retry loop with
// per-attempt adaptive deadlines, and finally a fallback chain:
//
//	reg := resilience.NewRegistry()
//	order, err := resilience.Execute(ctx, reg, "orders-db",
//	    func(ctx context.Context) (Order, error) {
//	        return db.FetchOrder(ctx, id)
//	    },
//	    resilience.WithIdempotencyKey(requestID),
//	)
package resilience
