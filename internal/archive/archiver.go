// Package archive moves expired chats from the key-value store to object
// storage as one JSON document per chat.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"matchchat/backend/internal/apperr"
	"matchchat/backend/internal/chat"
	"matchchat/backend/internal/config"
	"matchchat/backend/internal/logger"
	"matchchat/backend/internal/models"
	"matchchat/backend/internal/storage"
	"sort"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Document is the archived form of a chat.
type Document struct {
	ChatID     string               `json:"chatId"`
	Metadata   *models.Chat         `json:"metadata,omitempty"`
	Messages   []models.ChatMessage `json:"messages"`
	ReadStatus map[string]string    `json:"readStatus"`
	ArchivedAt int64                `json:"archivedAt"`
}

// Participants returns the chat participants, from the metadata when it is
// still there and from the messages otherwise.
func (d *Document) Participants() []string {
	if d.Metadata != nil {
		return d.Metadata.Participants[:]
	}
	seen := map[string]bool{}
	var out []string
	for _, m := range d.Messages {
		for _, u := range []string{m.FromUser, m.ToUser} {
			if u != "" && !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	sort.Strings(out)
	return out
}

type Archiver struct {
	kv      storage.KeyValueStore
	objects ObjectStorage
	prefix  string
	log     *zap.Logger

	Clock func() time.Time
}

func NewArchiver(kv storage.KeyValueStore, objects ObjectStorage, log *zap.Logger) *Archiver {
	return &Archiver{
		kv:      kv,
		objects: objects,
		prefix:  config.ArchivePrefix,
		log:     logger.OrNop(log).Named("archive"),
		Clock:   time.Now,
	}
}

// Snapshot reads whatever hot state is left for chatID. The metadata comes
// from the live key, or from its copy once the live key has expired.
func (a *Archiver) Snapshot(ctx context.Context, chatID string) (*Document, error) {
	doc := &Document{ChatID: chatID, ArchivedAt: a.Clock().UnixMilli()}

	for _, key := range []string{chat.MetaKey(chatID), chat.ArchiveMetaKey(chatID)} {
		raw, err := a.kv.Get(ctx, key)
		if errors.Is(err, storage.ErrNil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		var meta models.Chat
		if json.Unmarshal([]byte(raw), &meta) == nil && meta.ID != "" {
			doc.Metadata = &meta
			break
		}
	}

	entries, err := a.kv.HGetAll(ctx, chat.MessagesKey(chatID))
	if err != nil {
		return nil, err
	}
	for id, raw := range entries {
		var m models.ChatMessage
		if err := json.Unmarshal([]byte(raw), &m); err != nil || !m.Valid() {
			a.log.Debug("skip malformed message", zap.String("chat_id", chatID), zap.String("message_id", id))
			continue
		}
		doc.Messages = append(doc.Messages, m)
	}
	sort.Slice(doc.Messages, func(i, j int) bool {
		mi, mj := doc.Messages[i], doc.Messages[j]
		if mi.CreatedAt != mj.CreatedAt {
			return mi.CreatedAt < mj.CreatedAt
		}
		return mi.ID < mj.ID
	})

	if doc.ReadStatus, err = a.kv.HGetAll(ctx, chat.ReadKey(chatID)); err != nil {
		return nil, err
	}
	return doc, nil
}

// Archive writes the chat to object storage. archived is false when there
// were no messages to keep; in that case nothing is written.
func (a *Archiver) Archive(ctx context.Context, chatID string) (key string, archived bool, err error) {
	doc, err := a.Snapshot(ctx, chatID)
	if err != nil {
		return "", false, err
	}
	if len(doc.Messages) == 0 {
		return "", false, nil
	}
	return a.Store(ctx, doc)
}

// Store uploads an already built document.
func (a *Archiver) Store(ctx context.Context, doc *Document) (string, bool, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return "", false, apperr.Archival("archive.Store", err)
	}
	key := a.Key(doc.ChatID, doc.ArchivedAt)
	if err := a.objects.Put(ctx, key, "application/json", data); err != nil {
		a.log.Error("archive upload failed", zap.String("chat_id", doc.ChatID), zap.Error(err))
		return "", false, apperr.Archival("archive.Store", err)
	}
	a.log.Info("chat archived",
		zap.String("chat_id", doc.ChatID),
		zap.String("key", key),
		zap.Int("messages", len(doc.Messages)))
	return key, true, nil
}

func (a *Archiver) Key(chatID string, archivedAt int64) string {
	return fmt.Sprintf("%s/%s/%d.json", a.prefix, chatID, archivedAt)
}

// Fetch reads an archived document back.
func (a *Archiver) Fetch(ctx context.Context, key string) (*Document, error) {
	data, err := a.objects.Get(ctx, key)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, apperr.NotFound("archive.Fetch", err)
	}
	if err != nil {
		return nil, apperr.Archival("archive.Fetch", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperr.Archival("archive.Fetch", errors.Wrap(err, "decode document"))
	}
	return &doc, nil
}

// DownloadURL returns a presigned link to an archived document.
func (a *Archiver) DownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	url, err := a.objects.PresignURL(ctx, key, ttl)
	if err != nil {
		return "", apperr.Archival("archive.DownloadURL", err)
	}
	return url, nil
}

// Remove deletes an archived document.
func (a *Archiver) Remove(ctx context.Context, key string) error {
	if err := a.objects.Delete(ctx, key); err != nil {
		return apperr.Archival("archive.Remove", err)
	}
	return nil
}
