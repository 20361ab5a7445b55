package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/fleetkit/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (development, staging, production).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Metrics holds the metric instruments for the resilience core.
// A nil *Metrics is valid; all recording methods become no-ops.
type Metrics struct {
	callTotal       metric.Int64Counter
	callDuration    metric.Float64Histogram
	rejectedTotal   metric.Int64Counter
	transitionTotal metric.Int64Counter
	probeDuration   metric.Float64Histogram
	snapshotTotal   metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	callTotal, err := meter.Int64Counter("dependency.call.total",
		metric.WithDescription("Total dependency invocations by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dependency.call.total counter: %w", err)
	}

	callDuration, err := meter.Float64Histogram("dependency.call.duration",
		metric.WithDescription("Duration of dependency invocations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dependency.call.duration histogram: %w", err)
	}

	rejectedTotal, err := meter.Int64Counter("circuit.rejected.total",
		metric.WithDescription("Calls rejected because the circuit was open"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating circuit.rejected.total counter: %w", err)
	}

	transitionTotal, err := meter.Int64Counter("circuit.transition.total",
		metric.WithDescription("Circuit state transitions"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating circuit.transition.total counter: %w", err)
	}

	probeDuration, err := meter.Float64Histogram("health.probe.duration",
		metric.WithDescription("Duration of health probes in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating health.probe.duration histogram: %w", err)
	}

	snapshotTotal, err := meter.Int64Counter("health.snapshot.total",
		metric.WithDescription("Fleet snapshot requests by source"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating health.snapshot.total counter: %w", err)
	}

	return &Metrics{
		callTotal:       callTotal,
		callDuration:    callDuration,
		rejectedTotal:   rejectedTotal,
		transitionTotal: transitionTotal,
		probeDuration:   probeDuration,
		snapshotTotal:   snapshotTotal,
	}, nil
}

// RecordCall records one dependency invocation.
func (m *Metrics) RecordCall(ctx context.Context, dependency, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.callTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrDependency, dependency),
		attribute.String(AttrOutcome, outcome),
	))
	m.callDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(AttrDependency, dependency),
	))
}

// RecordRejected records a call rejected by an open circuit.
func (m *Metrics) RecordRejected(ctx context.Context, dependency string) {
	if m == nil {
		return
	}
	m.rejectedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrDependency, dependency),
	))
}

// RecordTransition records a circuit state transition.
func (m *Metrics) RecordTransition(ctx context.Context, dependency, from, to string) {
	if m == nil {
		return
	}
	m.transitionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrDependency, dependency),
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordProbe records one health probe result.
func (m *Metrics) RecordProbe(ctx context.Context, target, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.probeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("target", target),
		attribute.String(AttrStatus, status),
	))
}

// RecordSnapshot records a fleet snapshot request and whether it was
// served from cache.
func (m *Metrics) RecordSnapshot(ctx context.Context, cached bool) {
	if m == nil {
		return
	}
	m.snapshotTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool(AttrCached, cached),
	))
}
