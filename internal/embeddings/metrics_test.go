package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestMetrics_Observe(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	orig := otel.GetMeterProvider()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))
	t.Cleanup(func() { otel.SetMeterProvider(orig) })

	m := NewMetrics(nil)
	ctx := context.Background()
	started := time.Now().Add(-20 * time.Millisecond)
	m.Observe(ctx, ProviderOllama, "nomic-embed-text", opDocuments, 500, started, nil)
	m.Observe(ctx, ProviderOllama, "nomic-embed-text", opDocuments, 500, started, nil)
	m.Observe(ctx, ProviderOllama, "nomic-embed-text", opQuery, 1, started, errors.New("connection refused"))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	var histograms int
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch data := md.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					sums[md.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				histograms += len(data.DataPoints)
			}
		}
	}

	assert.Equal(t, int64(1000), sums["docrag.embedding.texts_total"])
	assert.Equal(t, int64(1), sums["docrag.embedding.failures_total"])
	assert.Equal(t, 2, histograms, "one series per operation")
}
