package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/stockline/backoffice/pkg/config"
)

func TestInjectExtractRoundTrip(t *testing.T) {
	shutdown, err := Init(context.Background(), config.TracingConfig{Enabled: false}, "test")
	require.NoError(t, err)
	defer shutdown(context.Background())

	tp := sdktrace.NewTracerProvider()
	ctx, span := tp.Tracer("test").Start(context.Background(), "publish")
	defer span.End()

	headers := Inject(ctx)
	require.Contains(t, headers, "traceparent")

	out := Extract(context.Background(), headers)
	assert.Equal(t, span.SpanContext().TraceID(), trace.SpanContextFromContext(out).TraceID())
}

func TestExtractWithoutHeadersKeepsContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), struct{}{}, "x")
	assert.Equal(t, ctx, Extract(ctx, nil))
}
