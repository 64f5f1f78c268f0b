package notify

import (
	"context"
	"matchchat/backend/internal/models"
	"matchchat/backend/internal/storage"

	"github.com/redis/go-redis/v9"
)

// RedisTransport publishes on redis channels named after models.Channel.
type RedisTransport struct {
	Store storage.KeyValueStore
}

func (t *RedisTransport) Send(ctx context.Context, channel models.Channel, data []byte) error {
	return t.Store.Publish(ctx, string(channel), data)
}

// RedisSource holds one subscription to every fixed channel.
type RedisSource struct {
	Client *redis.Client
}

func (s *RedisSource) Messages(ctx context.Context) (<-chan Message, func() error, error) {
	names := make([]string, len(models.AllChannels))
	for i, c := range models.AllChannels {
		names[i] = string(c)
	}
	pubsub := s.Client.Subscribe(ctx, names...)
	// Block until the subscription is confirmed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- Message{Channel: models.Channel(msg.Channel), Payload: []byte(msg.Payload)}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, pubsub.Close, nil
}
