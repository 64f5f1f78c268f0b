// Package complaint provides the core logic for handling user complaints:
// filing them with a snapshot of the conversation and blocking the reported
// user once a serious enough complaint is confirmed.
package complaint

import (
	"context"
	"encoding/json"
	"matchchat/backend/internal/apperr"
	"matchchat/backend/internal/config"
	"matchchat/backend/internal/logger"
	"matchchat/backend/internal/models"
	"matchchat/backend/internal/notify"
	"matchchat/backend/internal/storage"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrAlreadyResolved = errors.New("complaint already resolved")

// ChatReader is the part of the chat store complaints need.
type ChatReader interface {
	Authorize(ctx context.Context, chatID, userID string) (*models.Chat, error)
	ListMessages(ctx context.Context, chatID string, limit, offset int) ([]models.ChatMessage, error)
}

// FileInput is a complaint as submitted by the reporter.
type FileInput struct {
	ReporterID string `json:"-"`
	ChatID     string `json:"chatId" binding:"required"`
	Reason     string `json:"reason"`
	Severity   string `json:"severity" binding:"required"`
}

// Service handles the business logic for complaints.
type Service struct {
	Store storage.ComplaintStore
	Users storage.UserDirectory
	Chats ChatReader
	Bus   notify.Publisher
	log   *zap.Logger
}

// NewService creates a new complaint service.
func NewService(store storage.ComplaintStore, users storage.UserDirectory, chats ChatReader, bus notify.Publisher, log *zap.Logger) *Service {
	if bus == nil {
		bus = notify.Nop{}
	}
	return &Service{Store: store, Users: users, Chats: chats, Bus: bus, log: logger.OrNop(log).Named("complaint")}
}

// File records a complaint of the reporter against their chat partner.
func (s *Service) File(ctx context.Context, in FileInput) (*models.Complaint, error) {
	const op = "complaint.File"
	if config.ComplaintWeight(in.Severity) == 0 {
		return nil, apperr.Invalid(op, "unknown severity "+in.Severity)
	}
	chat, err := s.Chats.Authorize(ctx, in.ChatID, in.ReporterID)
	if err != nil {
		return nil, err
	}

	recent, err := s.Chats.ListMessages(ctx, in.ChatID, config.ComplaintLogMessages, 0)
	if err != nil {
		return nil, err
	}
	logged, err := json.Marshal(recent)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}

	c := &models.Complaint{
		ComplaintID:    uuid.NewString(),
		ReporterID:     in.ReporterID,
		TargetID:       chat.Partner(in.ReporterID),
		ChatID:         in.ChatID,
		Reason:         in.Reason,
		Severity:       in.Severity,
		LoggedMessages: string(logged),
		Status:         models.ComplaintPending,
	}
	if err := s.Store.CreateComplaint(ctx, c); err != nil {
		return nil, err
	}

	s.publish(ctx, c)
	s.log.Info("complaint filed",
		zap.String("complaint_id", c.ComplaintID),
		zap.String("target_id", c.TargetID),
		zap.String("severity", c.Severity))
	return c, nil
}

// Resolve confirms or rejects a pending complaint.
func (s *Service) Resolve(ctx context.Context, complaintID string, status models.ComplaintStatus) (*models.Complaint, error) {
	const op = "complaint.Resolve"
	if status != models.ComplaintConfirmed && status != models.ComplaintRejected {
		return nil, apperr.Invalid(op, "status must be confirmed or rejected")
	}
	c, err := s.Store.GetComplaint(ctx, complaintID)
	if err != nil {
		return nil, err
	}
	if c.Status != models.ComplaintPending {
		return nil, apperr.Conflict(op, ErrAlreadyResolved)
	}
	if err := s.Store.UpdateComplaintStatus(ctx, complaintID, status); err != nil {
		return nil, err
	}
	c.Status = status

	if err := s.checkForBlock(ctx, c); err != nil {
		return nil, err
	}
	s.publish(ctx, c)
	return c, nil
}

// checkForBlock blocks the target of a confirmed complaint whose severity
// weight reaches the threshold.
func (s *Service) checkForBlock(ctx context.Context, c *models.Complaint) error {
	if c.Status != models.ComplaintConfirmed || config.ComplaintWeight(c.Severity) < config.BlockWeightThreshold {
		return nil
	}
	if err := s.Users.SetUserStatus(ctx, c.TargetID, models.UserBlocked); err != nil {
		return err
	}
	s.log.Warn("user blocked", zap.String("user_id", c.TargetID), zap.String("complaint_id", c.ComplaintID))
	return nil
}

func (s *Service) publish(ctx context.Context, c *models.Complaint) {
	s.Bus.Publish(ctx, models.ChannelComplaintUpdate, models.ComplaintUpdateEvent{
		ComplaintID: c.ComplaintID,
		UserID:      c.ReporterID,
		Status:      c.Status,
		Timestamp:   time.Now().UnixMilli(),
	})
}
