package cleanup

import (
	"context"
	"matchchat/backend/internal/archive"
	"matchchat/backend/internal/chat"
	"matchchat/backend/internal/config"
	"matchchat/backend/internal/logger"
	"matchchat/backend/internal/storage"
	"sort"

	"go.uber.org/zap"
)

// Archiver is the part of archive.Archiver the chat job needs.
type Archiver interface {
	Snapshot(ctx context.Context, chatID string) (*archive.Document, error)
	Store(ctx context.Context, doc *archive.Document) (string, bool, error)
}

// ChatJob archives chats whose metadata has expired and removes what is
// left of them from the hot store. A chat whose upload fails keeps its hot
// keys and is retried on the next run.
type ChatJob struct {
	kv       storage.KeyValueStore
	archiver Archiver
	log      *zap.Logger
}

func NewChatJob(kv storage.KeyValueStore, archiver Archiver, log *zap.Logger) *ChatJob {
	return &ChatJob{kv: kv, archiver: archiver, log: logger.OrNop(log).Named("cleanup.chats")}
}

func (j *ChatJob) Name() string    { return "chats" }
func (j *ChatJob) LockKey() string { return config.ChatCleanupLockKey }

func (j *ChatJob) Run(ctx context.Context) (Report, error) {
	ids, err := j.orphanCandidates(ctx)
	if err != nil {
		return Report{}, err
	}

	var report Report
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		live, err := j.kv.Exists(ctx, chat.MetaKey(id))
		if err != nil {
			report.Failed++
			continue
		}
		if live {
			continue
		}
		if err := j.archiveAndPurge(ctx, id); err != nil {
			j.log.Warn("chat not cleaned", zap.String("chat_id", id), zap.Error(err))
			report.Failed++
			continue
		}
		report.Processed++
	}
	return report, nil
}

// orphanCandidates lists every chat id that still has a message log, an
// order index or a metadata copy.
func (j *ChatJob) orphanCandidates(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	collect := func(key string) error {
		if id, ok := chat.ChatIDFromKey(key); ok {
			seen[id] = true
		}
		return nil
	}
	for _, pattern := range []string{chat.MessagesPattern, chat.OrderPattern, chat.ArchiveMetaPattern} {
		if err := j.kv.Scan(ctx, pattern, collect); err != nil {
			return nil, err
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (j *ChatJob) archiveAndPurge(ctx context.Context, chatID string) error {
	doc, err := j.archiver.Snapshot(ctx, chatID)
	if err != nil {
		return err
	}
	if len(doc.Messages) > 0 {
		if _, _, err := j.archiver.Store(ctx, doc); err != nil {
			return err
		}
	}

	participants := doc.Participants()
	return j.kv.Atomic(ctx, func(tx storage.Tx) error {
		tx.Del(chat.LogKeys(chatID)...)
		for _, u := range participants {
			tx.HDel(chat.UserChatsKey(u), chatID)
		}
		return nil
	})
}
