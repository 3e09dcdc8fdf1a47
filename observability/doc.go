// Package observability wires the engine into OpenTelemetry. It owns the
// OTLP tracer and meter providers, the engine's metric instruments, and an
// observer that polls registry stats into observable gauges so breaker
// states and queue depths are visible without any push logic inside the
// resilience components themselves.
//
//	tp, _ := observability.InitTracer(ctx, observability.DefaultTracerConfig("my-service", "production"))
//	defer tp.Shutdown(ctx)
//
//	mp, _ := observability.InitMeter(ctx, observability.DefaultMeterConfig("my-service"))
//	defer mp.Shutdown(ctx)
//
//	metrics, _ := observability.NewEngineMetrics(observability.Meter("my-service"))
//	_ = observability.RegisterStatsObserver(observability.Meter("my-service"), registry)
package observability
