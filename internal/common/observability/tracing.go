package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Tracing owns the process tracer provider.
type Tracing struct {
	provider *sdktrace.TracerProvider
}

// TracingOptions configures NewTracing. An empty JaegerEndpoint keeps spans
// in-process, which still propagates trace ids into logs.
type TracingOptions struct {
	ServiceName    string
	JaegerEndpoint string
	SampleRatio    float64
}

// NewTracing installs a global tracer provider.
func NewTracing(opts TracingOptions, extra ...sdktrace.TracerProviderOption) (*Tracing, error) {
	ratio := opts.SampleRatio
	if ratio <= 0 || ratio > 1 {
		ratio = 1
	}

	providerOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", opts.ServiceName),
		)),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))),
	}

	if opts.JaegerEndpoint != "" {
		exporter, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(opts.JaegerEndpoint)))
		if err != nil {
			return nil, fmt.Errorf("create jaeger exporter: %w", err)
		}
		providerOpts = append(providerOpts, sdktrace.WithBatcher(exporter))
	}
	providerOpts = append(providerOpts, extra...)

	provider := sdktrace.NewTracerProvider(providerOpts...)
	otel.SetTracerProvider(provider)

	return &Tracing{provider: provider}, nil
}

func (t *Tracing) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return t.provider.Shutdown(ctx)
}
