package resilience

// callOptions collects per-call knobs shared by Manager.Execute and the
// composed Execute chain.
type callOptions struct {
	idempotencyKey string
	priority       Priority
	retryIf        func(error) bool
	fallback       *FallbackChain
}

// CallOption customizes a single protected call.
type CallOption func(*callOptions)

// WithIdempotencyKey lets a retried or duplicated call reuse the result of
// a prior successful call carrying the same key.
func WithIdempotencyKey(key string) CallOption {
	return func(o *callOptions) { o.idempotencyKey = key }
}

// WithPriority sets the bulkhead admission priority for this call.
func WithPriority(p Priority) CallOption {
	return func(o *callOptions) { o.priority = p }
}

// WithRetryIf overrides the retry classification predicate for this call.
func WithRetryIf(fn func(error) bool) CallOption {
	return func(o *callOptions) { o.retryIf = fn }
}

// WithFallback attaches a fallback chain, executed when the protected call
// fails after all retries (or is rejected by a policy layer).
func WithFallback(chain *FallbackChain) CallOption {
	return func(o *callOptions) { o.fallback = chain }
}

func applyCallOptions(opts []CallOption) callOptions {
	o := callOptions{priority: PriorityNormal}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
