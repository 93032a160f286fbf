package mcp

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docrag/internal/embeddings"
	"github.com/fyrsmithlabs/docrag/internal/rag"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

const instrumentationName = "github.com/fyrsmithlabs/docrag/internal/mcp"

// Call outcomes besides the error reasons from errorReason.
const (
	outcomeAnswered = "answered"
	outcomeFallback = "fallback"
)

// toolMetrics counts tool calls by outcome and records their latency.
type toolMetrics struct {
	calls   metric.Int64Counter
	latency metric.Float64Histogram
}

func newToolMetrics(meter metric.Meter, logger *zap.Logger) *toolMetrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &toolMetrics{}

	var err error
	m.calls, err = meter.Int64Counter(
		"docrag.mcp.tool.calls_total",
		metric.WithDescription("MCP tool calls by tool and outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		logger.Warn("mcp call counter unavailable", zap.Error(err))
	}
	m.latency, err = meter.Float64Histogram(
		"docrag.mcp.tool.duration_seconds",
		metric.WithDescription("MCP tool call latency by tool and outcome"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		logger.Warn("mcp latency histogram unavailable", zap.Error(err))
	}
	return m
}

// record adds one call of tool that started at start.
func (m *toolMetrics) record(ctx context.Context, tool string, start time.Time, outcome string) {
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("outcome", outcome),
	)
	if m.calls != nil {
		m.calls.Add(ctx, 1, attrs)
	}
	if m.latency != nil {
		m.latency.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

// outcomeOf labels the result of one ask.
func outcomeOf(answer *rag.Answer, err error) string {
	switch {
	case err != nil:
		return errorReason(err)
	case answer != nil && answer.Fallback:
		return outcomeFallback
	default:
		return outcomeAnswered
	}
}

// errorReason maps an ask error to a low cardinality label.
func errorReason(err error) string {
	switch {
	case errors.Is(err, rag.ErrEmptyQuestion):
		return "validation_error"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, embeddings.ErrEmbeddingFailed), errors.Is(err, embeddings.ErrEmptyInput):
		return "embedding_error"
	case errors.Is(err, vectorstore.ErrConnectionFailed), errors.Is(err, vectorstore.ErrInvalidQuery):
		return "storage_error"
	case strings.Contains(err.Error(), "synthesizing answer"):
		return "model_error"
	default:
		return "internal_error"
	}
}
