package chathub

import (
	"context"
	"matchchat/backend/internal/apperr"
	"matchchat/backend/internal/logger"
	"matchchat/backend/internal/models"
	"matchchat/backend/internal/notify"
	"time"

	"go.uber.org/zap"
)

// ChatActions is the part of the chat store client frames reach.
type ChatActions interface {
	SetTyping(ctx context.Context, chatID, userID string, isTyping bool) error
	MarkRead(ctx context.Context, chatID, userID, lastReadMessageID string) error
	Partners(ctx context.Context, userID string) ([]string, error)
}

// ChatFrames routes typing and read frames to the chat store.
type ChatFrames struct {
	Chats ChatActions
}

func (h ChatFrames) HandleFrame(ctx context.Context, userID string, f models.InboundFrame) error {
	switch f.Event {
	case "typing":
		return h.Chats.SetTyping(ctx, f.ChatID, userID, f.IsTyping)
	case "read":
		return h.Chats.MarkRead(ctx, f.ChatID, userID, f.LastReadMessageID)
	default:
		return apperr.Invalid("chathub.HandleFrame", "unknown frame "+f.Event)
	}
}

// Presence publishes online/offline status to everyone the user chats with.
func Presence(chats ChatActions, bus notify.Publisher, log *zap.Logger) PresenceFunc {
	log = logger.OrNop(log)
	return func(ctx context.Context, userID string, online bool) {
		partners, err := chats.Partners(ctx, userID)
		if err != nil {
			log.Warn("list partners for presence", zap.String("user_id", userID), zap.Error(err))
			return
		}
		if len(partners) == 0 {
			return
		}
		status := "offline"
		if online {
			status = "online"
		}
		bus.Publish(ctx, models.ChannelUserStatus, models.UserStatusEvent{
			UserID:        userID,
			Status:        status,
			NotifyUserIDs: partners,
			Timestamp:     time.Now().UnixMilli(),
		})
	}
}
