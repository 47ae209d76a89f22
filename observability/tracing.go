// Package observability wires OpenTelemetry tracing for campaign runs.
// Agents open "agent.run" and "model.generate" spans through the tracer
// set on core.RunContext; this package only builds the provider.
package observability

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/hupe1980/campaignmesh/config"
)

// ServiceName identifies campaignmesh in exported spans.
const ServiceName = "campaignmesh"

// Tracing holds a tracer and the shutdown hook flushing its exporter.
type Tracing struct {
	Tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// Shutdown flushes and stops the exporter. Safe on a disabled Tracing.
func (t *Tracing) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}

	return t.provider.Shutdown(ctx)
}

// Enabled reports whether spans are exported.
func (t *Tracing) Enabled() bool { return t != nil && t.provider != nil }

// NewTracing builds tracing from cfg. Disabled tracing yields a no-op
// tracer. The stdout exporter writes pretty-printed spans to w, or to
// stderr when w is nil.
func NewTracing(cfg config.TracingConfig, w io.Writer) (*Tracing, error) {
	if !cfg.Enabled || cfg.Exporter == "none" {
		return &Tracing{Tracer: noop.NewTracerProvider().Tracer(ServiceName)}, nil
	}

	if w == nil {
		w = os.Stderr
	}

	var opts []sdktrace.TracerProviderOption

	switch cfg.Exporter {
	case "", "stdout":
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}

		opts = append(opts, sdktrace.WithBatcher(exporter))
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", cfg.Exporter)
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(semconv.ServiceName(ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(append(opts, sdktrace.WithResource(res))...)

	return &Tracing{Tracer: tp.Tracer(ServiceName), provider: tp}, nil
}
