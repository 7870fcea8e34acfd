package rest

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type restMetrics struct {
	requests metric.Int64Counter
	errors   metric.Int64Counter
	latency  metric.Float64Histogram
}

func newRestMetrics() *restMetrics {
	meter := otel.Meter("gatebot.exchange.gate.rest")
	m := &restMetrics{}

	m.requests, _ = meter.Int64Counter("gatebot_rest_requests",
		metric.WithDescription("Signed REST requests sent to Gate"),
		metric.WithUnit("{request}"))

	m.errors, _ = meter.Int64Counter("gatebot_rest_errors",
		metric.WithDescription("Failed REST requests by kind"),
		metric.WithUnit("{error}"))

	m.latency, _ = meter.Float64Histogram("gatebot_rest_latency",
		metric.WithDescription("Round trip latency of REST requests"),
		metric.WithUnit("ms"))

	return m
}

func (m *restMetrics) recordRequest(ctx context.Context, method, path string, latencyMs float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
	)
	if m.requests != nil {
		m.requests.Add(ctx, 1, attrs)
	}
	if m.latency != nil {
		m.latency.Record(ctx, latencyMs, attrs)
	}
}

func (m *restMetrics) recordError(ctx context.Context, method, kind string) {
	if m == nil || m.errors == nil {
		return
	}
	m.errors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("kind", kind),
	))
}
