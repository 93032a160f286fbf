package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Field keys added by ContextFields.
const (
	RequestIDKey = "request.id"
	StageKey     = "ingest.stage"
)

type requestIDKey struct{}
type stageKey struct{}

// ContextFields returns the correlation fields carried by ctx.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		fields = append(fields, zap.String(RequestIDKey, id))
	}
	if stage, ok := ctx.Value(stageKey{}).(string); ok {
		fields = append(fields, zap.String(StageKey, stage))
	}
	return fields
}

// WithRequestID tags ctx with the HTTP request id. Empty ids are ignored.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// WithStage tags ctx with an ingest stage (download, clean, chunk, embed).
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, stageKey{}, stage)
}
