package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewTracing_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracing, err := NewTracing(TracingOptions{ServiceName: "postcode-workers-test"}, sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)
	defer tracing.Shutdown(context.Background())

	_, span := otel.Tracer("test").Start(context.Background(), "unit")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "unit", ended[0].Name())

	var service string
	for _, kv := range ended[0].Resource().Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, "postcode-workers-test", service)
}

func TestNewTracing_JaegerExporter(t *testing.T) {
	tracing, err := NewTracing(TracingOptions{
		ServiceName:    "postcode-workers-test",
		JaegerEndpoint: "http://127.0.0.1:14268/api/traces",
		SampleRatio:    0.5,
	})
	require.NoError(t, err)
	assert.NotNil(t, tracing.provider)
	_ = tracing.Shutdown(context.Background())
}

func TestTracing_NilSafe(t *testing.T) {
	var tracing *Tracing
	assert.NoError(t, tracing.Shutdown(context.Background()))
}
