package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextFields_RequestAndStage(t *testing.T) {
	ctx := WithStage(WithRequestID(context.Background(), "abc"), "chunk")

	fields := ContextFields(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, RequestIDKey, fields[0].Key)
	assert.Equal(t, "abc", fields[0].String)
	assert.Equal(t, StageKey, fields[1].Key)
	assert.Equal(t, "chunk", fields[1].String)
}

func TestContextFields_Trace(t *testing.T) {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1, 2, 3},
		SpanID:  trace.SpanID{4, 5, 6},
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	fields := ContextFields(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, "trace_id", fields[0].Key)
	assert.Equal(t, sc.TraceID().String(), fields[0].String)
	assert.Equal(t, "span_id", fields[1].Key)
}

func TestWithRequestID_EmptyIgnored(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithRequestID(ctx, ""))
}
