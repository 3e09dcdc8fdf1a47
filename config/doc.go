// Package config loads engine configuration from YAML files and environment
// variables and turns it into per-dependency resilience policies.
//
// Lookup order is YAML first, then a .env file, then real environment
// variables; later sources win. The typed EngineConfig carries validation
// tags and default application, so a registry can be warmed up from a single
// Load call:
//
//	var cfg config.EngineConfig
//	if err := config.Load("my-service", &cfg); err != nil { ... }
//	cfg.ApplyDefaults()
//	if err := cfg.Validate(); err != nil { ... }
//	reg := resilience.NewRegistry()
//	cfg.Apply(reg)
package config
