// Package health runs periodic liveness, readiness, and deep probes against
// named dependencies and tracks per-probe status with hysteresis: a healthy
// probe must fail several consecutive times before it is marked unhealthy,
// while a single success marks it healthy again. The grace period stops one
// transient blip from flapping load balancer membership.
//
// Probes are registered with a kind so orchestrator endpoints can evaluate
// only the probes they care about: liveness for restart decisions, readiness
// for traffic admission, deep checks for dependency diagnostics.
package health
