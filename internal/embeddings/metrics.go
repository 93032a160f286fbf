package embeddings

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/docrag/internal/embeddings"

// Operations recorded with every measurement.
const (
	opDocuments = "documents"
	opQuery     = "query"
)

// Metrics records embedding latency, volume and failures per backend.
// Instruments that fail to register are left nil and skipped.
type Metrics struct {
	latency  metric.Float64Histogram
	texts    metric.Int64Counter
	failures metric.Int64Counter
}

// NewMetrics registers the instruments on the global meter provider.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	meter := otel.Meter(instrumentationName)
	m := &Metrics{}

	var err error
	m.latency, err = meter.Float64Histogram(
		"docrag.embedding.duration_seconds",
		metric.WithDescription("Time spent in one embedding call"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60),
	)
	if err != nil {
		logger.Warn("embedding latency histogram unavailable", zap.Error(err))
	}
	m.texts, err = meter.Int64Counter(
		"docrag.embedding.texts_total",
		metric.WithDescription("Texts sent to the embedding model"),
		metric.WithUnit("{text}"),
	)
	if err != nil {
		logger.Warn("embedding texts counter unavailable", zap.Error(err))
	}
	m.failures, err = meter.Int64Counter(
		"docrag.embedding.failures_total",
		metric.WithDescription("Embedding calls that returned an error"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		logger.Warn("embedding failures counter unavailable", zap.Error(err))
	}
	return m
}

// Observe records one call of op that embedded n texts.
func (m *Metrics) Observe(ctx context.Context, backend, model, op string, n int, started time.Time, err error) {
	attrs := metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("model", model),
		attribute.String("operation", op),
	)
	if m.latency != nil {
		m.latency.Record(ctx, time.Since(started).Seconds(), attrs)
	}
	if err != nil {
		if m.failures != nil {
			m.failures.Add(ctx, 1, attrs)
		}
		return
	}
	if m.texts != nil {
		m.texts.Add(ctx, int64(n), attrs)
	}
}
