package notify

import (
	"context"
	"matchchat/backend/internal/models"
	"strings"

	"github.com/nats-io/nats.go"
)

const natsSubjectPrefix = "matchchat."

func natsSubject(c models.Channel) string { return natsSubjectPrefix + string(c) }

// NATSTransport publishes on subjects "matchchat.<channel>".
type NATSTransport struct {
	Conn *nats.Conn
}

func (t *NATSTransport) Send(_ context.Context, channel models.Channel, data []byte) error {
	return t.Conn.Publish(natsSubject(channel), data)
}

// NATSSource subscribes to "matchchat.*".
type NATSSource struct {
	Conn *nats.Conn
}

func (s *NATSSource) Messages(ctx context.Context) (<-chan Message, func() error, error) {
	in := make(chan *nats.Msg, 256)
	sub, err := s.Conn.ChanSubscribe(natsSubjectPrefix+"*", in)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				msg := Message{
					Channel: models.Channel(strings.TrimPrefix(m.Subject, natsSubjectPrefix)),
					Payload: m.Data,
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, sub.Unsubscribe, nil
}
