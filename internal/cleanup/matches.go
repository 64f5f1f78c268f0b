package cleanup

import (
	"context"
	"matchchat/backend/internal/config"
	"matchchat/backend/internal/logger"
	"matchchat/backend/internal/match"
	"matchchat/backend/internal/models"
	"matchchat/backend/internal/notify"
	"matchchat/backend/internal/storage"
	"time"

	"go.uber.org/zap"
)

// ChatFinder looks up the chat of a pair.
type ChatFinder interface {
	FindChatBetween(ctx context.Context, a, b string) (string, bool, error)
}

// MatchJob removes matches whose chat no longer exists, in both directions,
// and tells both users.
type MatchJob struct {
	likes storage.LikeStore
	chats ChatFinder
	bus   notify.Publisher
	batch int
	log   *zap.Logger
}

func NewMatchJob(likes storage.LikeStore, chats ChatFinder, bus notify.Publisher, log *zap.Logger) *MatchJob {
	if bus == nil {
		bus = notify.Nop{}
	}
	return &MatchJob{
		likes: likes,
		chats: chats,
		bus:   bus,
		batch: config.MatchCleanupBatch,
		log:   logger.OrNop(log).Named("cleanup.matches"),
	}
}

func (j *MatchJob) Name() string    { return "matches" }
func (j *MatchJob) LockKey() string { return config.MatchCleanupLockKey }

func (j *MatchJob) Run(ctx context.Context) (Report, error) {
	var report Report
	var afterID uint
	for {
		pairs, err := j.likes.ListMatchedPairs(ctx, afterID, j.batch)
		if err != nil {
			return report, err
		}
		for _, p := range pairs {
			afterID = p.ID
			if err := ctx.Err(); err != nil {
				return report, err
			}
			_, live, err := j.chats.FindChatBetween(ctx, p.FromUserID, p.ToUserID)
			if err != nil {
				report.Failed++
				continue
			}
			if live {
				continue
			}
			if _, err := j.likes.DeleteLikePair(ctx, p.FromUserID, p.ToUserID); err != nil {
				j.log.Warn("delete expired match", zap.String("user_a", p.FromUserID), zap.String("user_b", p.ToUserID), zap.Error(err))
				report.Failed++
				continue
			}
			j.bus.Publish(ctx, models.ChannelMatchCancelled, models.MatchCancelledEvent{
				User1ID:   p.FromUserID,
				User2ID:   p.ToUserID,
				Reason:    match.ReasonExpired,
				Timestamp: time.Now().UnixMilli(),
			})
			report.Processed++
		}
		if len(pairs) < j.batch {
			return report, nil
		}
	}
}
