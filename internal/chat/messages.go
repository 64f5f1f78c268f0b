package chat

import (
	"context"
	"encoding/json"
	"matchchat/backend/internal/apperr"
	"matchchat/backend/internal/config"
	"matchchat/backend/internal/models"
	"matchchat/backend/internal/storage"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// AppendInput is a new message as submitted by its sender.
type AppendInput struct {
	ChatID   string
	FromUser string
	ToUser   string // optional; must be the partner when set
	Text     string
	Media    *models.Media
}

// AppendMessage stores a message, moves the chat's last message pointer and
// refreshes the TTL of every hot key of the chat in one atomic write.
func (s *Store) AppendMessage(ctx context.Context, in AppendInput) (*models.ChatMessage, error) {
	const op = "chat.AppendMessage"
	text := strings.TrimSpace(in.Text)
	if text == "" && in.Media == nil {
		return nil, apperr.Invalid(op, "message text or media is required")
	}

	chat, err := s.Get(ctx, in.ChatID)
	if err != nil {
		return nil, err
	}
	to := chat.Partner(in.FromUser)
	if to == "" || (in.ToUser != "" && in.ToUser != to) {
		return nil, apperr.Forbidden(op, ErrNotParticipant)
	}

	sender, err := s.users.FindByTelegramID(ctx, in.FromUser)
	if err != nil {
		return nil, err
	}
	if !sender.CanMessage() {
		return nil, apperr.Forbidden(op, ErrSenderBlocked)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	now := s.nowMs()
	msg := &models.ChatMessage{
		ID:        id.String(),
		ChatID:    chat.ID,
		FromUser:  in.FromUser,
		ToUser:    to,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
		ReadState: models.Unread,
		Media:     in.Media,
	}
	chat.LastMessageID = &msg.ID

	if err := s.write(ctx, chat, true, msg); err != nil {
		return nil, err
	}

	s.invalidatePreviews(ctx, chat.Participants[0], chat.Participants[1])
	s.publishMessage(ctx, msg, false)
	s.log.Debug("message appended", zap.String("chat_id", chat.ID), zap.String("message_id", msg.ID))
	return msg, nil
}

// ListMessages returns a page of messages, newest first. Entries that cannot
// be decoded are skipped.
func (s *Store) ListMessages(ctx context.Context, chatID string, limit, offset int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = config.DefaultMessagesPage
	}
	if limit > config.MaxMessagesPage {
		limit = config.MaxMessagesPage
	}
	if offset < 0 {
		offset = 0
	}
	if _, err := s.Get(ctx, chatID); err != nil {
		return nil, err
	}

	ids, err := s.kv.ZRevRange(ctx, OrderKey(chatID), int64(offset), int64(offset+limit-1))
	if err != nil {
		return nil, err
	}
	msgs, err := s.loadMessages(ctx, chatID, ids)
	if err != nil {
		return nil, err
	}
	out := make([]models.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, *m)
	}
	return out, nil
}

// GetMessage returns one message of a live chat.
func (s *Store) GetMessage(ctx context.Context, chatID, messageID string) (*models.ChatMessage, error) {
	if _, err := s.Get(ctx, chatID); err != nil {
		return nil, err
	}
	return s.loadMessage(ctx, chatID, messageID)
}

// EditMessage replaces the text of a message. Only its author may edit it.
func (s *Store) EditMessage(ctx context.Context, chatID, messageID, userID, text string) (*models.ChatMessage, error) {
	const op = "chat.EditMessage"
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperr.Invalid(op, "message text is required")
	}
	chat, msg, err := s.authorMessage(ctx, op, chatID, messageID, userID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, apperr.Conflict(op, ErrMessageDeleted)
	}

	msg.Text = text
	msg.UpdatedAt = s.nowMs()
	if err := s.write(ctx, chat, false, msg); err != nil {
		return nil, err
	}
	s.invalidatePreviews(ctx, chat.Participants[0], chat.Participants[1])
	s.publishMessage(ctx, msg, true)
	return msg, nil
}

// DeleteMessage replaces a message with a tombstone. The entry stays in the
// log and the order index so pagination does not shift.
func (s *Store) DeleteMessage(ctx context.Context, chatID, messageID, userID string) (*models.ChatMessage, error) {
	const op = "chat.DeleteMessage"
	chat, msg, err := s.authorMessage(ctx, op, chatID, messageID, userID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return msg, nil
	}

	msg.Text = config.DeletedMessageText
	msg.Media = nil
	msg.IsDeleted = true
	msg.UpdatedAt = s.nowMs()
	if err := s.write(ctx, chat, false, msg); err != nil {
		return nil, err
	}
	s.invalidatePreviews(ctx, chat.Participants[0], chat.Participants[1])
	s.publishMessage(ctx, msg, true)
	return msg, nil
}

func (s *Store) authorMessage(ctx context.Context, op, chatID, messageID, userID string) (*models.Chat, *models.ChatMessage, error) {
	chat, err := s.Authorize(ctx, chatID, userID)
	if err != nil {
		return nil, nil, err
	}
	msg, err := s.loadMessage(ctx, chatID, messageID)
	if err != nil {
		return nil, nil, err
	}
	if msg.FromUser != userID {
		return nil, nil, apperr.Forbidden(op, ErrNotAuthor)
	}
	return chat, msg, nil
}

// write stores msgs, optionally indexes them and rewrites the chat metadata,
// then refreshes the TTL, all in one script. It fails with ChatNotFound when
// the chat was deleted in the meantime.
func (s *Store) write(ctx context.Context, chat *models.Chat, index bool, msgs ...*models.ChatMessage) error {
	args := s.ttlArgs()
	if index {
		meta, err := json.Marshal(chat)
		if err != nil {
			return errors.Wrap(err, "chat: encode metadata")
		}
		args = append(args, string(meta))
	} else {
		args = append(args, "")
	}
	for _, m := range msgs {
		data, err := json.Marshal(m)
		if err != nil {
			return errors.Wrap(err, "chat: encode message")
		}
		score := ""
		if index {
			score = formatScore(m.CreatedAt)
		}
		args = append(args, m.ID, score, string(data))
	}
	return s.runChatScript(ctx, "chat.write", writeScript, chatKeys(chat), args)
}

func (s *Store) publishMessage(ctx context.Context, msg *models.ChatMessage, changed bool) {
	ev := models.NewMessageEvent{
		ChatID:      msg.ChatID,
		MessageID:   msg.ID,
		SenderID:    msg.FromUser,
		RecipientID: msg.ToUser,
		Text:        msg.Text,
		Timestamp:   msg.UpdatedAt,
		Edited:      changed && !msg.IsDeleted,
		Deleted:     msg.IsDeleted,
	}
	if msg.Media != nil {
		ev.MediaType = msg.Media.Type
		ev.MediaURL = msg.Media.URL
	}
	s.bus.Publish(ctx, models.ChannelNewMessage, ev)
}

func (s *Store) loadMessage(ctx context.Context, chatID, messageID string) (*models.ChatMessage, error) {
	raw, err := s.kv.HGet(ctx, MessagesKey(chatID), messageID)
	if errors.Is(err, storage.ErrNil) {
		return nil, apperr.NotFound("chat.GetMessage", ErrMessageNotFound)
	}
	if err != nil {
		return nil, err
	}
	msg, ok := decodeMessage(raw)
	if !ok {
		return nil, apperr.NotFound("chat.GetMessage", ErrMessageNotFound)
	}
	return msg, nil
}

// loadMessages fetches ids in order, dropping missing or malformed entries.
func (s *Store) loadMessages(ctx context.Context, chatID string, ids []string) ([]*models.ChatMessage, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	vals, err := s.kv.HMGet(ctx, MessagesKey(chatID), ids...)
	if err != nil {
		return nil, err
	}
	out := make([]*models.ChatMessage, 0, len(vals))
	for i, v := range vals {
		if v == nil {
			continue
		}
		msg, ok := decodeMessage(*v)
		if !ok {
			s.log.Debug("skip malformed message", zap.String("chat_id", chatID), zap.String("message_id", ids[i]))
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func decodeMessage(raw string) (*models.ChatMessage, bool) {
	var m models.ChatMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, false
	}
	return &m, m.Valid()
}
