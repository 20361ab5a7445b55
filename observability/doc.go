// Package observability provides OpenTelemetry tracing and metrics for the
// resilience core.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("fleetkit"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanDependencyCall)
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("fleetkit"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("fleetkit"))
//	metrics.RecordCall(ctx, "billing", "success", duration)
//
// A nil *Metrics is a valid no-op recorder, so callers wire instruments
// without conditionals.
package observability
