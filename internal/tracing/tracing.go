// Package tracing installs the OpenTelemetry tracer provider used by the
// application services.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config describes where spans go. An empty Endpoint and no Exporter leaves
// the global no-op provider in place.
type Config struct {
	ServiceName string
	Version     string
	Environment string
	// Endpoint is an OTLP/gRPC collector address such as otel-collector:4317.
	Endpoint string
	// Exporter overrides the OTLP exporter.
	Exporter sdktrace.SpanExporter
}

// ShutdownFunc flushes and stops the provider.
type ShutdownFunc func(context.Context) error

// Init installs a batching tracer provider and W3C trace context propagation.
func Init(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	exporter := cfg.Exporter
	if exporter == nil {
		if cfg.Endpoint == "" {
			return func(context.Context) error { return nil }, nil
		}
		exp, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.Endpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, fmt.Errorf("tracing: otlp exporter: %w", err)
		}
		exporter = exp
	}

	if cfg.ServiceName == "" {
		cfg.ServiceName = "lab-scheduler"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	attrs := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	)
	if cfg.Environment != "" {
		attrs, _ = resource.Merge(attrs, resource.NewWithAttributes(semconv.SchemaURL, semconv.DeploymentEnvironment(cfg.Environment)))
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(attrs),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return tp.Shutdown, nil
}
