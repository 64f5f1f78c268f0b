// Package notify is the publish/subscribe layer between write-path services
// and the WebSocket connection holders. Publishing is fire-and-forget:
// failures are logged and counted, never returned to the caller.
package notify

import (
	"context"
	"encoding/json"
	"matchchat/backend/internal/logger"
	"matchchat/backend/internal/metrics"
	"matchchat/backend/internal/models"

	"go.uber.org/zap"
)

// Publisher is what write-path services depend on.
type Publisher interface {
	Publish(ctx context.Context, channel models.Channel, payload any)
}

// Transport moves serialized events to the broker.
type Transport interface {
	Send(ctx context.Context, channel models.Channel, data []byte) error
}

// Bus serializes payloads and hands them to a Transport.
type Bus struct {
	transport Transport
	log       *zap.Logger
}

func NewBus(t Transport, log *zap.Logger) *Bus {
	return &Bus{transport: t, log: logger.OrNop(log)}
}

func (b *Bus) Publish(ctx context.Context, channel models.Channel, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Warn("encode event", zap.String("channel", string(channel)), zap.Error(err))
		metrics.EventsPublished.WithLabelValues(string(channel), "error").Inc()
		return
	}
	if err := b.transport.Send(ctx, channel, data); err != nil {
		b.log.Warn("publish event", zap.String("channel", string(channel)), zap.Error(err))
		metrics.EventsPublished.WithLabelValues(string(channel), "error").Inc()
		return
	}
	metrics.EventsPublished.WithLabelValues(string(channel), "ok").Inc()
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, models.Channel, any) {}
