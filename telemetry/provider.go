// Package telemetry wires OpenTelemetry tracing for scorecast: a
// config-gated OTLP/HTTP tracer provider and W3C context propagation.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/courtside/scorecast/config"
	"github.com/courtside/scorecast/logger"
	"github.com/courtside/scorecast/version"
)

// Instrumentation scope reported on every span.
const (
	InstrumentationName    = "github.com/courtside/scorecast"
	InstrumentationVersion = "1.0.0"
)

// Tracer returns the scorecast tracer from tp, or from the global provider
// when tp is nil.
func Tracer(tp trace.TracerProvider) trace.Tracer {
	opt := trace.WithInstrumentationVersion(InstrumentationVersion)
	if tp != nil {
		return tp.Tracer(InstrumentationName, opt)
	}
	return otel.Tracer(InstrumentationName, opt)
}

// NewTracerProvider builds a TracerProvider that batches spans to an
// OTLP/HTTP collector at endpoint. The caller owns Shutdown.
func NewTracerProvider(ctx context.Context, endpoint, serviceName string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", version.GetVersion()),
	))
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

// SetupPropagation installs a global text-map propagator for W3C
// TraceContext and Baggage headers.
func SetupPropagation() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Setup installs tracing according to the config and returns a shutdown
// function. When telemetry is disabled both the install and the shutdown are
// no-ops and the global provider stays noop.
func Setup(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.Telemetry.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	tp, err := NewTracerProvider(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	otel.SetTracerProvider(tp)
	SetupPropagation()

	logger.Info("Telemetry enabled",
		"endpoint", cfg.Telemetry.Endpoint,
		"service", cfg.Telemetry.ServiceName)
	return tp.Shutdown, nil
}
