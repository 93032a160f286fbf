package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/fyrsmithlabs/docrag/internal/http"

// requestMetrics records per-route request counts, latency and the number
// of requests in flight. /ask latency is dominated by the chat model, so
// the histogram reaches the client timeout.
type requestMetrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

func newRequestMetrics(meter metric.Meter, logger *zap.Logger) *requestMetrics {
	if meter == nil {
		meter = otel.Meter(instrumentationName)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &requestMetrics{}

	var err error
	m.requests, err = meter.Int64Counter(
		"docrag.http.requests_total",
		metric.WithDescription("HTTP requests by method, route and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("http request counter unavailable", zap.Error(err))
	}
	m.latency, err = meter.Float64Histogram(
		"docrag.http.request_duration_seconds",
		metric.WithDescription("HTTP request latency by method, route and status"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120),
	)
	if err != nil {
		logger.Warn("http latency histogram unavailable", zap.Error(err))
	}
	m.inFlight, err = meter.Int64UpDownCounter(
		"docrag.http.in_flight_requests",
		metric.WithDescription("HTTP requests currently being served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		logger.Warn("http in-flight gauge unavailable", zap.Error(err))
	}
	return m
}

// middleware wraps next with the request instruments.
func (m *requestMetrics) middleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		start := time.Now()
		if m.inFlight != nil {
			m.inFlight.Add(ctx, 1)
			defer m.inFlight.Add(ctx, -1)
		}

		err := next(c)

		attrs := metric.WithAttributes(
			attribute.String("method", c.Request().Method),
			attribute.String("route", routeLabel(c.Path())),
			attribute.Int("status", statusOf(c, err)),
		)
		if m.requests != nil {
			m.requests.Add(ctx, 1, attrs)
		}
		if m.latency != nil {
			m.latency.Record(ctx, time.Since(start).Seconds(), attrs)
		}
		return err
	}
}

// routeLabel maps the matched route to a label. Routes are fixed, so the
// route itself is bounded; unmatched requests share one label.
func routeLabel(path string) string {
	if path == "" {
		return "unmatched"
	}
	return path
}

// statusOf returns the status the client will see, including errors the
// error handler has not written yet.
func statusOf(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return http.StatusInternalServerError
}
