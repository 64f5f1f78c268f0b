package notify

import (
	"context"
	"encoding/json"
	"matchchat/backend/internal/logger"
	"matchchat/backend/internal/metrics"
	"matchchat/backend/internal/models"

	"go.uber.org/zap"
)

// Message is one event received from the broker.
type Message struct {
	Channel models.Channel
	Payload []byte
}

// Source yields broker messages until ctx is cancelled or the returned
// close function is called.
type Source interface {
	Messages(ctx context.Context) (<-chan Message, func() error, error)
}

// Delivery is the WebSocket connection holder. Rooms are named by user id.
type Delivery interface {
	SendToUser(userID, event string, payload json.RawMessage)
	SendToRoom(room, event string, payload json.RawMessage)
}

type targetFunc func(payload []byte) ([]string, error)

// Subscriber fans events out to the users they concern.
type Subscriber struct {
	source   Source
	delivery Delivery
	log      *zap.Logger
	targets  map[models.Channel]targetFunc
}

func NewSubscriber(src Source, d Delivery, log *zap.Logger) *Subscriber {
	return &Subscriber{
		source:   src,
		delivery: d,
		log:      logger.OrNop(log),
		targets: map[models.Channel]targetFunc{
			models.ChannelNewMessage: decodeTargets(func(e *models.NewMessageEvent) []string {
				return []string{e.RecipientID}
			}),
			models.ChannelMessageRead: decodeTargets(func(e *models.MessageReadEvent) []string {
				return []string{e.RecipientID}
			}),
			models.ChannelTypingStatus: decodeTargets(func(e *models.TypingEvent) []string {
				return []string{e.RecipientID}
			}),
			models.ChannelNewLike: decodeTargets(func(e *models.LikeEvent) []string {
				return []string{e.ToUserID}
			}),
			models.ChannelNewMatch: decodeTargets(func(e *models.MatchEvent) []string {
				return []string{e.User1ID, e.User2ID}
			}),
			models.ChannelMatchCancelled: decodeTargets(func(e *models.MatchCancelledEvent) []string {
				return []string{e.User1ID, e.User2ID}
			}),
			models.ChannelComplaintUpdate: decodeTargets(func(e *models.ComplaintUpdateEvent) []string {
				return []string{e.UserID}
			}),
			models.ChannelUserStatus: decodeTargets(func(e *models.UserStatusEvent) []string {
				return e.NotifyUserIDs
			}),
			models.ChannelChatDeleted: decodeTargets(func(e *models.ChatDeletedEvent) []string {
				return e.Participants[:]
			}),
		},
	}
}

func decodeTargets[E any](pick func(*E) []string) targetFunc {
	return func(payload []byte) ([]string, error) {
		var e E
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return pick(&e), nil
	}
}

// Run consumes the source until ctx is done.
func (s *Subscriber) Run(ctx context.Context) error {
	msgs, closeFn, err := s.source.Messages(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			s.log.Warn("close subscription", zap.Error(err))
		}
	}()

	s.log.Info("notification subscriber started", zap.Int("channels", len(s.targets)))
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			s.Dispatch(msg)
		}
	}
}

// Dispatch routes one message. Malformed payloads are logged and dropped.
func (s *Subscriber) Dispatch(msg Message) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("dispatch panic", zap.String("channel", string(msg.Channel)), zap.Any("panic", r))
		}
	}()

	target, ok := s.targets[msg.Channel]
	if !ok {
		s.log.Warn("event on unknown channel", zap.String("channel", string(msg.Channel)))
		metrics.EventsDelivered.WithLabelValues(string(msg.Channel), "unknown").Inc()
		return
	}
	userIDs, err := target(msg.Payload)
	if err != nil {
		s.log.Warn("malformed event", zap.String("channel", string(msg.Channel)), zap.Error(err))
		metrics.EventsDelivered.WithLabelValues(string(msg.Channel), "malformed").Inc()
		return
	}

	seen := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		s.delivery.SendToUser(id, string(msg.Channel), json.RawMessage(msg.Payload))
	}
	metrics.EventsDelivered.WithLabelValues(string(msg.Channel), "ok").Inc()
}
