package tracing

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// keepSpans survives provider shutdown so the test can inspect what was flushed.
type keepSpans struct {
	*tracetest.InMemoryExporter
}

func (keepSpans) Shutdown(context.Context) error { return nil }

func TestInitWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{})
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
}

func TestInitExportsSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	shutdown, err := Init(context.Background(), Config{ServiceName: "lab-scheduler-test", Environment: "test", Exporter: keepSpans{exporter}})
	if err != nil {
		t.Fatalf("Init returned error: %v", err)
	}

	_, span := otel.Tracer("tracing_test").Start(context.Background(), "probe")
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown returned error: %v", err)
	}
	spans := exporter.GetSpans()
	if len(spans) != 1 || spans[0].Name != "probe" {
		t.Fatalf("expected the probe span, got %d spans", len(spans))
	}
	found := false
	for _, kv := range spans[0].Resource.Attributes() {
		if string(kv.Key) == "service.name" && kv.Value.AsString() == "lab-scheduler-test" {
			found = true
		}
	}
	if !found {
		t.Fatalf("service name missing from resource")
	}
}
