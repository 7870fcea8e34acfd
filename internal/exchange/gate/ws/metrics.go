package ws

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type streamMetrics struct {
	connects      metric.Int64Counter
	disconnects   metric.Int64Counter
	framesIn      metric.Int64Counter
	framesOut     metric.Int64Counter
	handlerErrors metric.Int64Counter
}

func newStreamMetrics() *streamMetrics {
	meter := otel.Meter("gatebot.exchange.gate.ws")
	m := &streamMetrics{}

	m.connects, _ = meter.Int64Counter("gatebot_ws_connects",
		metric.WithDescription("WebSocket connections that reached the subscribed state"),
		metric.WithUnit("{connection}"))

	m.disconnects, _ = meter.Int64Counter("gatebot_ws_disconnects",
		metric.WithDescription("WebSocket epochs that ended by reason"),
		metric.WithUnit("{connection}"))

	m.framesIn, _ = meter.Int64Counter("gatebot_ws_frames_received",
		metric.WithDescription("Inbound WebSocket frames by type"),
		metric.WithUnit("{frame}"))

	m.framesOut, _ = meter.Int64Counter("gatebot_ws_frames_sent",
		metric.WithDescription("Outbound WebSocket frames written by the sender"),
		metric.WithUnit("{frame}"))

	m.handlerErrors, _ = meter.Int64Counter("gatebot_ws_handler_errors",
		metric.WithDescription("Errors returned by the message handler"),
		metric.WithUnit("{error}"))

	return m
}

func (m *streamMetrics) connected(ctx context.Context) {
	if m == nil || m.connects == nil {
		return
	}
	m.connects.Add(ctx, 1)
}

func (m *streamMetrics) disconnected(ctx context.Context, reason string) {
	if m == nil || m.disconnects == nil {
		return
	}
	m.disconnects.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *streamMetrics) frameReceived(ctx context.Context, kind string) {
	if m == nil || m.framesIn == nil {
		return
	}
	m.framesIn.Add(ctx, 1, metric.WithAttributes(attribute.String("type", kind)))
}

func (m *streamMetrics) frameSent(ctx context.Context) {
	if m == nil || m.framesOut == nil {
		return
	}
	m.framesOut.Add(ctx, 1)
}

func (m *streamMetrics) handlerError(ctx context.Context) {
	if m == nil || m.handlerErrors == nil {
		return
	}
	m.handlerErrors.Add(ctx, 1)
}
