// Package chat keeps the hot chat state in the key-value store: chat
// metadata, the message log, its time order index, read markers and the
// per-user chat index. Every write refreshes the rolling TTL on all hot keys
// of the chat at once. The message log, order index and read markers live
// ArchiveGrace longer than the metadata, so a chat whose metadata expired
// can still be archived by the cleanup job.
package chat

import (
	"context"
	"encoding/json"
	"matchchat/backend/internal/apperr"
	"matchchat/backend/internal/config"
	"matchchat/backend/internal/logger"
	"matchchat/backend/internal/models"
	"matchchat/backend/internal/notify"
	"matchchat/backend/internal/storage"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotParticipant  = errors.New("user is not a participant of this chat")
	ErrSenderBlocked   = errors.New("sender is blocked")
	ErrNotAuthor       = errors.New("only the author can change this message")
	ErrMessageDeleted  = errors.New("message was deleted")
	ErrSelfChat        = errors.New("cannot open a chat with yourself")
)

// createScript claims the pair key and writes the chat in one step. When the
// pair key already points to a live chat, that chat id is returned instead.
//
// KEYS: pair, meta, index of A, index of B, archive meta
// ARGV: chat id, metadata JSON, ttl ms, index entry JSON, meta key prefix,
// log ttl ms
var createScript = redis.NewScript(`
local existing = redis.call("GET", KEYS[1])
if existing and redis.call("EXISTS", ARGV[5] .. existing) == 1 then
	return existing
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
redis.call("SET", KEYS[5], ARGV[2], "PX", ARGV[6])
redis.call("HSET", KEYS[3], ARGV[1], ARGV[4])
redis.call("HSET", KEYS[4], ARGV[1], ARGV[4])
return ARGV[1]
`)

// Store is the ChatStore.
type Store struct {
	kv    storage.KeyValueStore
	users storage.UserDirectory
	bus   notify.Publisher
	ttl   time.Duration
	log   *zap.Logger

	// ArchiveGrace extends the TTL of the message log past the metadata.
	ArchiveGrace time.Duration

	// Clock is replaceable in tests.
	Clock func() time.Time
}

func NewStore(kv storage.KeyValueStore, users storage.UserDirectory, bus notify.Publisher, ttl time.Duration, log *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = config.DefaultChatTTL
	}
	if bus == nil {
		bus = notify.Nop{}
	}
	return &Store{
		kv:    kv,
		users: users,
		bus:   bus,
		ttl:   ttl,
		log:   logger.OrNop(log).Named("chat"),

		ArchiveGrace: config.DefaultArchiveGrace,
		Clock:        time.Now,
	}
}

func (s *Store) TTL() time.Duration { return s.ttl }

// LogTTL is the TTL of the message log, order index and read markers.
func (s *Store) LogTTL() time.Duration { return s.ttl + s.ArchiveGrace }

func (s *Store) nowMs() int64 { return s.Clock().UnixMilli() }

// Create returns the chat between a and b, creating it if none exists.
func (s *Store) Create(ctx context.Context, a, b string) (string, error) {
	const op = "chat.Create"
	if a == "" || b == "" {
		return "", apperr.Invalid(op, "both participants are required")
	}
	if a == b {
		return "", apperr.Invalid(op, ErrSelfChat.Error())
	}

	if id, ok, err := s.FindChatBetween(ctx, a, b); err != nil {
		return "", err
	} else if ok {
		return id, nil
	}

	for _, id := range []string{a, b} {
		if _, err := s.users.FindByTelegramID(ctx, id); err != nil {
			return "", err
		}
	}

	chat := models.Chat{
		ID:           uuid.NewString(),
		Participants: [2]string{a, b},
		CreatedAt:    s.nowMs(),
	}
	meta, err := json.Marshal(chat)
	if err != nil {
		return "", errors.Wrap(err, op)
	}
	entry, err := json.Marshal(models.UserChatIndex{ChatID: chat.ID})
	if err != nil {
		return "", errors.Wrap(err, op)
	}

	res, err := s.kv.RunScript(ctx, createScript,
		[]string{PairKey(a, b), MetaKey(chat.ID), UserChatsKey(a), UserChatsKey(b), ArchiveMetaKey(chat.ID)},
		chat.ID, string(meta), s.ttl.Milliseconds(), string(entry), chatPrefix, s.LogTTL().Milliseconds())
	if err != nil {
		return "", err
	}
	id, _ := res.(string)
	if id == "" {
		return "", apperr.Transient(op, errors.Errorf("unexpected script result %v", res))
	}
	if id != chat.ID {
		s.log.Debug("chat already created concurrently", zap.String("chat_id", id))
		return id, nil
	}

	s.invalidatePreviews(ctx, a, b)
	s.log.Info("chat created", zap.String("chat_id", id), zap.String("user_a", a), zap.String("user_b", b))
	return id, nil
}

// Get returns the chat metadata.
func (s *Store) Get(ctx context.Context, chatID string) (*models.Chat, error) {
	raw, err := s.kv.Get(ctx, MetaKey(chatID))
	if errors.Is(err, storage.ErrNil) {
		return nil, apperr.NotFound("chat.Get", ErrChatNotFound)
	}
	if err != nil {
		return nil, err
	}
	var chat models.Chat
	if err := json.Unmarshal([]byte(raw), &chat); err != nil || chat.ID == "" {
		s.log.Warn("malformed chat metadata", zap.String("chat_id", chatID), zap.Error(err))
		return nil, apperr.NotFound("chat.Get", ErrChatNotFound)
	}
	return &chat, nil
}

// Participants returns both participants of the chat.
func (s *Store) Participants(ctx context.Context, chatID string) ([2]string, error) {
	chat, err := s.Get(ctx, chatID)
	if err != nil {
		return [2]string{}, err
	}
	return chat.Participants, nil
}

// Authorize returns the chat when userID is one of its participants.
func (s *Store) Authorize(ctx context.Context, chatID, userID string) (*models.Chat, error) {
	chat, err := s.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if !chat.HasParticipant(userID) {
		return nil, apperr.Forbidden("chat.Authorize", ErrNotParticipant)
	}
	return chat, nil
}

// FindChatBetween looks the pair up in a's chat index, then falls back to
// the pair key.
func (s *Store) FindChatBetween(ctx context.Context, a, b string) (string, bool, error) {
	index, err := s.kv.HGetAll(ctx, UserChatsKey(a))
	if err != nil {
		return "", false, err
	}
	for chatID := range index {
		if _, err := s.kv.HGet(ctx, UserChatsKey(b), chatID); err != nil {
			if errors.Is(err, storage.ErrNil) {
				continue
			}
			return "", false, err
		}
		ok, err := s.kv.Exists(ctx, MetaKey(chatID))
		if err != nil {
			return "", false, err
		}
		if ok {
			return chatID, true, nil
		}
	}

	chatID, err := s.kv.Get(ctx, PairKey(a, b))
	if errors.Is(err, storage.ErrNil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	ok, err := s.kv.Exists(ctx, MetaKey(chatID))
	if err != nil {
		return "", false, err
	}
	return chatID, ok, nil
}

// Delete removes the chat metadata, the pair key and both index entries.
// With purgeMessages the message log, order index and read map go too;
// otherwise they are left for the archival sweep.
func (s *Store) Delete(ctx context.Context, chatID string, purgeMessages bool) error {
	chat, err := s.Get(ctx, chatID)
	if err != nil {
		return err
	}
	a, b := chat.Participants[0], chat.Participants[1]

	err = s.kv.Atomic(ctx, func(tx storage.Tx) error {
		tx.Del(MetaKey(chatID), PairKey(a, b))
		tx.HDel(UserChatsKey(a), chatID)
		tx.HDel(UserChatsKey(b), chatID)
		if purgeMessages {
			tx.Del(LogKeys(chatID)...)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidatePreviews(ctx, a, b)
	s.bus.Publish(ctx, models.ChannelChatDeleted, models.ChatDeletedEvent{
		ChatID:       chatID,
		Participants: chat.Participants,
		Timestamp:    s.nowMs(),
	})
	s.log.Info("chat deleted", zap.String("chat_id", chatID), zap.Bool("purged", purgeMessages))
	return nil
}

// Partners lists the users that share a live chat with userID.
func (s *Store) Partners(ctx context.Context, userID string) ([]string, error) {
	index, err := s.kv.HGetAll(ctx, UserChatsKey(userID))
	if err != nil {
		return nil, err
	}
	partners := make([]string, 0, len(index))
	for chatID := range index {
		chat, err := s.Get(ctx, chatID)
		if apperr.Is(err, apperr.KindNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if p := chat.Partner(userID); p != "" {
			partners = append(partners, p)
		}
	}
	sort.Strings(partners)
	return partners, nil
}

// UserChats returns previews of every live chat of userID, most recently
// active first. Results are cached for a short time; writes that change a
// preview drop the cache.
func (s *Store) UserChats(ctx context.Context, userID string) ([]models.ChatPreview, error) {
	if raw, err := s.kv.Get(ctx, previewKey(userID)); err == nil {
		var cached []models.ChatPreview
		if err := json.Unmarshal([]byte(raw), &cached); err == nil {
			return cached, nil
		}
	}

	index, err := s.kv.HGetAll(ctx, UserChatsKey(userID))
	if err != nil {
		return nil, err
	}

	previews := make([]models.ChatPreview, 0, len(index))
	var stale []string
	for chatID, rawEntry := range index {
		chat, err := s.Get(ctx, chatID)
		if apperr.Is(err, apperr.KindNotFound) {
			stale = append(stale, chatID)
			continue
		}
		if err != nil {
			return nil, err
		}

		var entry models.UserChatIndex
		_ = json.Unmarshal([]byte(rawEntry), &entry)

		preview := models.ChatPreview{Chat: *chat, PartnerID: chat.Partner(userID)}
		if chat.LastMessageID != nil {
			if msg, err := s.loadMessage(ctx, chatID, *chat.LastMessageID); err == nil {
				preview.LastMessage = msg
			}
		}
		if preview.UnreadCount, err = s.unreadCount(ctx, chatID, userID, entry.LastReadMessageID); err != nil {
			return nil, err
		}
		previews = append(previews, preview)
	}

	if len(stale) > 0 {
		if err := s.kv.HDel(ctx, UserChatsKey(userID), stale...); err != nil {
			s.log.Warn("prune stale chat index entries", zap.String("user_id", userID), zap.Error(err))
		}
	}

	sort.SliceStable(previews, func(i, j int) bool {
		return lastActivity(previews[i]) > lastActivity(previews[j])
	})

	if data, err := json.Marshal(previews); err == nil {
		if err := s.kv.Set(ctx, previewKey(userID), string(data), config.ChatPreviewTTL); err != nil {
			s.log.Debug("cache chat previews", zap.Error(err))
		}
	}
	return previews, nil
}

func lastActivity(p models.ChatPreview) int64 {
	if p.LastMessage != nil {
		return p.LastMessage.CreatedAt
	}
	return p.Chat.CreatedAt
}

// unreadCount counts live messages to userID that come after lastReadID.
func (s *Store) unreadCount(ctx context.Context, chatID, userID, lastReadID string) (int, error) {
	var after *models.ChatMessage
	if lastReadID != "" {
		if msg, err := s.loadMessage(ctx, chatID, lastReadID); err == nil {
			after = msg
		}
	}
	ids, err := s.kv.ZRange(ctx, OrderKey(chatID), 0, -1)
	if err != nil {
		return 0, err
	}
	msgs, err := s.loadMessages(ctx, chatID, ids)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range msgs {
		if m.ToUser != userID || m.IsDeleted || m.ReadState == models.Read {
			continue
		}
		if after != nil && !isAfter(m, after) {
			continue
		}
		n++
	}
	return n, nil
}

func isAfter(m, ref *models.ChatMessage) bool {
	if m.CreatedAt != ref.CreatedAt {
		return m.CreatedAt > ref.CreatedAt
	}
	return m.ID > ref.ID
}

func (s *Store) invalidatePreviews(ctx context.Context, users ...string) {
	keys := make([]string, 0, len(users))
	for _, u := range users {
		keys = append(keys, previewKey(u))
	}
	if _, err := s.kv.Del(ctx, keys...); err != nil {
		s.log.Debug("invalidate chat previews", zap.Error(err))
	}
}
