// Package match turns likes into matches. A like in both directions is a
// match and opens a chat between the two users.
package match

import (
	"context"
	"matchchat/backend/internal/apperr"
	"matchchat/backend/internal/logger"
	"matchchat/backend/internal/models"
	"matchchat/backend/internal/notify"
	"matchchat/backend/internal/storage"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrSelfLike     = errors.New("cannot like yourself")
	ErrAlreadyLiked = errors.New("already liked")
	ErrLikeNotFound = errors.New("like not found")
	ErrBlocked      = errors.New("user is blocked")
)

const (
	ReasonUnlike  = "unlike"
	ReasonExpired = "expired"
)

// Chats is the part of the chat store the engine needs.
type Chats interface {
	Create(ctx context.Context, a, b string) (string, error)
	FindChatBetween(ctx context.Context, a, b string) (string, bool, error)
	Delete(ctx context.Context, chatID string, purgeMessages bool) error
}

// Result is what a like produced.
type Result struct {
	IsMatch bool   `json:"isMatch"`
	ChatID  string `json:"chatId,omitempty"`
}

type Engine struct {
	likes storage.LikeStore
	users storage.UserDirectory
	chats Chats
	bus   notify.Publisher
	log   *zap.Logger

	Clock func() time.Time
}

func NewEngine(likes storage.LikeStore, users storage.UserDirectory, chats Chats, bus notify.Publisher, log *zap.Logger) *Engine {
	if bus == nil {
		bus = notify.Nop{}
	}
	return &Engine{
		likes: likes,
		users: users,
		chats: chats,
		bus:   bus,
		log:   logger.OrNop(log).Named("match"),
		Clock: time.Now,
	}
}

// Like records that from likes to. When to already likes from, both rows
// become a match and a chat is opened.
func (e *Engine) Like(ctx context.Context, from, to string) (*Result, error) {
	const op = "match.Like"
	if from == "" || to == "" {
		return nil, apperr.Invalid(op, "both users are required")
	}
	if from == to {
		return nil, apperr.Invalid(op, ErrSelfLike.Error())
	}

	liker, err := e.users.FindByTelegramID(ctx, from)
	if err != nil {
		return nil, err
	}
	if !liker.CanMessage() {
		return nil, apperr.Forbidden(op, ErrBlocked)
	}
	target, err := e.users.FindByTelegramID(ctx, to)
	if err != nil {
		return nil, err
	}
	if !target.CanMessage() {
		return nil, apperr.NotFound(op, storage.ErrUserNotFound)
	}

	existing, err := e.likes.GetLike(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict(op, ErrAlreadyLiked)
	}

	reverse, err := e.likes.GetLike(ctx, to, from)
	if err != nil {
		return nil, err
	}

	like := &models.Like{FromUserID: from, ToUserID: to, IsMatch: reverse != nil}
	if err := e.likes.CreateLike(ctx, like); err != nil {
		if apperr.Is(err, apperr.KindConflict) {
			return nil, apperr.Conflict(op, ErrAlreadyLiked)
		}
		return nil, err
	}

	if reverse != nil {
		return e.completeMatch(ctx, from, to)
	}

	// The reverse like may have landed between the check and the insert.
	// Both sides then see no reverse row, so look once more.
	reverse, err = e.likes.GetLike(ctx, to, from)
	if err != nil {
		return nil, err
	}
	if reverse != nil {
		if _, err := e.likes.SetMatch(ctx, from, to, true); err != nil {
			return nil, err
		}
		return e.completeMatch(ctx, from, to)
	}

	e.bus.Publish(ctx, models.ChannelNewLike, models.LikeEvent{
		FromUserID: from,
		ToUserID:   to,
		Timestamp:  e.Clock().UnixMilli(),
	})
	e.log.Debug("like recorded", zap.String("from", from), zap.String("to", to))
	return &Result{}, nil
}

func (e *Engine) completeMatch(ctx context.Context, from, to string) (*Result, error) {
	if _, err := e.likes.SetMatch(ctx, to, from, true); err != nil {
		return nil, err
	}
	chatID, err := e.chats.Create(ctx, from, to)
	if err != nil {
		e.log.Error("open chat for match", zap.String("user_a", from), zap.String("user_b", to), zap.Error(err))
		return nil, err
	}

	e.bus.Publish(ctx, models.ChannelNewMatch, models.MatchEvent{
		User1ID:   from,
		User2ID:   to,
		ChatID:    chatID,
		Timestamp: e.Clock().UnixMilli(),
	})
	e.log.Info("match", zap.String("user_a", from), zap.String("user_b", to), zap.String("chat_id", chatID))
	return &Result{IsMatch: true, ChatID: chatID}, nil
}

// Unlike removes from's like. If the pair was a match, the reverse like
// goes back to a plain like and the chat is deleted with its messages.
func (e *Engine) Unlike(ctx context.Context, from, to string) error {
	const op = "match.Unlike"
	like, err := e.likes.GetLike(ctx, from, to)
	if err != nil {
		return err
	}
	if like == nil {
		return apperr.NotFound(op, ErrLikeNotFound)
	}
	removed, err := e.likes.DeleteLike(ctx, from, to)
	if err != nil {
		return err
	}
	if !removed {
		return apperr.NotFound(op, ErrLikeNotFound)
	}
	if !like.IsMatch {
		return nil
	}

	if _, err := e.likes.SetMatch(ctx, to, from, false); err != nil {
		return err
	}

	chatID, found, err := e.chats.FindChatBetween(ctx, from, to)
	if err != nil {
		e.log.Warn("find chat of cancelled match", zap.Error(err))
	}
	e.bus.Publish(ctx, models.ChannelMatchCancelled, models.MatchCancelledEvent{
		User1ID:   from,
		User2ID:   to,
		ChatID:    chatID,
		Reason:    ReasonUnlike,
		Timestamp: e.Clock().UnixMilli(),
	})
	if found {
		if err := e.chats.Delete(ctx, chatID, true); err != nil && !apperr.Is(err, apperr.KindNotFound) {
			e.log.Warn("delete chat of cancelled match", zap.String("chat_id", chatID), zap.Error(err))
		}
	}
	e.log.Info("match cancelled", zap.String("user_a", from), zap.String("user_b", to))
	return nil
}
