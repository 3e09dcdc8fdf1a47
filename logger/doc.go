// Package logger provides structured logging for the resilience engine,
// built on zerolog.
//
// Engine components accept an optional *Logger; when none is supplied they
// fall back to the package-level global. Tests typically pass Nop().
//
//	log := logger.NewDefault("payments")
//	log.WithComponent("circuit_breaker").WithDependency("orders-db").
//	    Info("state changed", logger.Fields("state", "open"))
package logger
