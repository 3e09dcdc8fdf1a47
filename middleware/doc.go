// Package middleware provides Gin middleware and HTTP endpoints for exposing
// the resilience engine over a service's HTTP surface: request-level rate
// limiting backed by the resilience limiters, liveness/readiness/deep health
// endpoints backed by the health checker, and a stats endpoint serving a
// snapshot of every registered policy.
package middleware
