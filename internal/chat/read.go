package chat

import (
	"context"
	"encoding/json"
	"matchchat/backend/internal/apperr"
	"matchchat/backend/internal/models"
	"matchchat/backend/internal/storage"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// MarkRead records lastReadMessageID as userID's read marker and flips every
// earlier message addressed to userID to Read. Repeating the call with the
// same id changes nothing.
func (s *Store) MarkRead(ctx context.Context, chatID, userID, lastReadMessageID string) error {
	const op = "chat.MarkRead"
	if lastReadMessageID == "" {
		return apperr.Invalid(op, "lastReadMessageId is required")
	}
	chat, err := s.Authorize(ctx, chatID, userID)
	if err != nil {
		return err
	}

	score, err := s.kv.ZScore(ctx, OrderKey(chatID), lastReadMessageID)
	if errors.Is(err, storage.ErrNil) {
		return apperr.NotFound(op, ErrMessageNotFound)
	}
	if err != nil {
		return err
	}

	ids, err := s.kv.ZRangeByScore(ctx, OrderKey(chatID), math.Inf(-1), score)
	if err != nil {
		return err
	}
	msgs, err := s.loadMessages(ctx, chatID, ids)
	if err != nil {
		return err
	}
	var marker *models.ChatMessage
	for _, m := range msgs {
		if m.ID == lastReadMessageID {
			marker = m
		}
	}

	var flipped []*models.ChatMessage
	for _, m := range msgs {
		if m.ToUser != userID || m.ReadState == models.Read {
			continue
		}
		if marker != nil && isAfter(m, marker) {
			continue
		}
		m.ReadState = models.Read
		flipped = append(flipped, m)
	}

	entry, err := json.Marshal(models.UserChatIndex{ChatID: chatID, LastReadMessageID: lastReadMessageID})
	if err != nil {
		return errors.Wrap(err, op)
	}
	args := append(s.ttlArgs(), userID, lastReadMessageID, chatID, string(entry))
	for _, m := range flipped {
		data, err := json.Marshal(m)
		if err != nil {
			return errors.Wrap(err, op)
		}
		args = append(args, m.ID, string(data))
	}
	keys := append(chatKeys(chat), UserChatsKey(userID))
	if err := s.runChatScript(ctx, op, readScript, keys, args); err != nil {
		return err
	}

	s.invalidatePreviews(ctx, userID)
	s.bus.Publish(ctx, models.ChannelMessageRead, models.MessageReadEvent{
		ChatID:            chatID,
		ReaderID:          userID,
		RecipientID:       chat.Partner(userID),
		LastReadMessageID: lastReadMessageID,
		Timestamp:         s.nowMs(),
	})
	s.log.Debug("messages read", zap.String("chat_id", chatID), zap.String("user_id", userID), zap.Int("flipped", len(flipped)))
	return nil
}

// ReadStatus returns the read marker of every participant that has one.
func (s *Store) ReadStatus(ctx context.Context, chatID string) (map[string]string, error) {
	return s.kv.HGetAll(ctx, ReadKey(chatID))
}

// SetTyping tells the partner that userID started or stopped typing.
// Nothing is stored.
func (s *Store) SetTyping(ctx context.Context, chatID, userID string, isTyping bool) error {
	chat, err := s.Authorize(ctx, chatID, userID)
	if err != nil {
		return err
	}
	s.bus.Publish(ctx, models.ChannelTypingStatus, models.TypingEvent{
		ChatID:      chatID,
		UserID:      userID,
		RecipientID: chat.Partner(userID),
		IsTyping:    isTyping,
		Timestamp:   s.nowMs(),
	})
	return nil
}
