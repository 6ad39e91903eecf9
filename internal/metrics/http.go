package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const unmatchedRoute = "unmatched"

type httpInstruments struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter, namespace string) (*httpInstruments, error) {
	requests, err := meter.Int64Counter(namespace+"_http_requests_total",
		metric.WithDescription("HTTP requests served"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	latency, err := meter.Float64Histogram(namespace+"_http_request_duration_seconds",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create latency histogram: %w", err)
	}

	inFlight, err := meter.Int64UpDownCounter(namespace+"_http_requests_in_flight",
		metric.WithDescription("HTTP requests currently being served"),
		metric.WithUnit("{request}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-flight counter: %w", err)
	}

	return &httpInstruments{requests: requests, latency: latency, inFlight: inFlight}, nil
}

// HTTPMetricsMiddleware counts requests and observes their latency. Requests are
// labelled with the matched route template, so /v1/auth/me stays one series no
// matter who calls it. If the instruments cannot be created the middleware
// passes requests through untouched.
func HTTPMetricsMiddleware(meterProvider metric.MeterProvider, namespace string) gin.HandlerFunc {
	inst, err := newHTTPInstruments(meterProvider.Meter(namespace), namespace)
	if err != nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		method := attribute.String("method", c.Request.Method)

		inst.inFlight.Add(ctx, 1, metric.WithAttributes(method))
		start := time.Now()

		c.Next()

		inst.inFlight.Add(ctx, -1, metric.WithAttributes(method))

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		attrs := metric.WithAttributes(
			method,
			attribute.String("route", route),
			attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
		)
		inst.requests.Add(ctx, 1, attrs)
		inst.latency.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}
