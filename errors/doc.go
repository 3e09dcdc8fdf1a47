// Package errors defines the typed error taxonomy for the resilience engine.
//
// Policy-layer rejections (circuit open, retry budget exceeded, bulkhead
// full/timeout, rate limited) are deliberate protective decisions and are
// always surfaced to the immediate caller so they can be told apart from a
// genuine downstream failure. Downstream failures themselves pass through
// the engine unchanged.
//
//	res, err := resilience.Execute(ctx, reg, "orders-db", fetch)
//	if appErr := errors.AsAppError(err); appErr != nil && appErr.Code == errors.ErrCodeCircuitOpen {
//	    // serve from cache instead
//	}
package errors
