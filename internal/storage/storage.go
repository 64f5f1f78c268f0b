package storage

import (
	"context"
	"matchchat/backend/internal/apperr"
	"matchchat/backend/internal/models"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrLikeExists        = errors.New("like already exists")
	ErrComplaintNotFound = errors.New("complaint not found")
)

// UserDirectory resolves profiles by Telegram ID.
type UserDirectory interface {
	FindByTelegramID(ctx context.Context, telegramID string) (*models.User, error)
	SaveUserIfNotExists(ctx context.Context, telegramID, name string) (*models.User, error)
	SetUserStatus(ctx context.Context, telegramID string, status models.UserStatus) error
}

// LikeStore owns the like relation. The (from, to) pair is unique.
type LikeStore interface {
	GetLike(ctx context.Context, fromUserID, toUserID string) (*models.Like, error)
	CreateLike(ctx context.Context, like *models.Like) error
	SetMatch(ctx context.Context, fromUserID, toUserID string, isMatch bool) (bool, error)
	DeleteLike(ctx context.Context, fromUserID, toUserID string) (bool, error)
	DeleteLikePair(ctx context.Context, userA, userB string) (int64, error)
	ListMatchedPairs(ctx context.Context, afterID uint, limit int) ([]models.Like, error)
}

// ComplaintStore owns complaints.
type ComplaintStore interface {
	CreateComplaint(ctx context.Context, c *models.Complaint) error
	GetComplaint(ctx context.Context, complaintID string) (*models.Complaint, error)
	UpdateComplaintStatus(ctx context.Context, complaintID string, status models.ComplaintStatus) error
	DeleteComplaintsBefore(ctx context.Context, status models.ComplaintStatus, before time.Time) (int64, error)
}

// SQLStore implements the relational collaborators on gorm.
type SQLStore struct {
	DB *gorm.DB
}

// NewSQLStore Constructor
func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{DB: db}
}

// OpenPostgres connects and runs migrations for every relational model.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, errors.Wrap(err, "connect postgres")
	}
	if err := db.AutoMigrate(&models.User{}, &models.Like{}, &models.Complaint{}); err != nil {
		return nil, errors.Wrap(err, "run migrations")
	}
	return db, nil
}

func (s *SQLStore) FindByTelegramID(ctx context.Context, telegramID string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("users.FindByTelegramID", ErrUserNotFound)
	}
	if err != nil {
		return nil, apperr.Transient("users.FindByTelegramID", err)
	}
	return &user, nil
}

func (s *SQLStore) SaveUserIfNotExists(ctx context.Context, telegramID, name string) (*models.User, error) {
	var user models.User
	defaults := models.User{TelegramID: telegramID, Name: name}

	result := s.DB.WithContext(ctx).Where("telegram_id = ?", telegramID).FirstOrCreate(&user, defaults)
	if result.Error != nil {
		return nil, apperr.Transient("users.SaveUserIfNotExists", result.Error)
	}
	return &user, nil
}

func (s *SQLStore) SetUserStatus(ctx context.Context, telegramID string, status models.UserStatus) error {
	result := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("telegram_id = ?", telegramID).
		Update("status", status)
	if result.Error != nil {
		return apperr.Transient("users.SetUserStatus", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("users.SetUserStatus", ErrUserNotFound)
	}
	return nil
}

// GetLike returns nil, nil when the row does not exist.
func (s *SQLStore) GetLike(ctx context.Context, fromUserID, toUserID string) (*models.Like, error) {
	var like models.Like
	err := s.DB.WithContext(ctx).
		Where("from_user_id = ? AND to_user_id = ?", fromUserID, toUserID).
		First(&like).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Transient("likes.GetLike", err)
	}
	return &like, nil
}

func (s *SQLStore) CreateLike(ctx context.Context, like *models.Like) error {
	err := s.DB.WithContext(ctx).Create(like).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.Conflict("likes.CreateLike", ErrLikeExists)
	}
	return apperr.Transient("likes.CreateLike", err)
}

// SetMatch reports whether a row was updated.
func (s *SQLStore) SetMatch(ctx context.Context, fromUserID, toUserID string, isMatch bool) (bool, error) {
	result := s.DB.WithContext(ctx).Model(&models.Like{}).
		Where("from_user_id = ? AND to_user_id = ?", fromUserID, toUserID).
		Update("is_match", isMatch)
	if result.Error != nil {
		return false, apperr.Transient("likes.SetMatch", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *SQLStore) DeleteLike(ctx context.Context, fromUserID, toUserID string) (bool, error) {
	result := s.DB.WithContext(ctx).
		Where("from_user_id = ? AND to_user_id = ?", fromUserID, toUserID).
		Delete(&models.Like{})
	if result.Error != nil {
		return false, apperr.Transient("likes.DeleteLike", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeleteLikePair removes both directions in one transaction.
func (s *SQLStore) DeleteLikePair(ctx context.Context, userA, userB string) (int64, error) {
	var deleted int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)",
			userA, userB, userB, userA).
			Delete(&models.Like{})
		deleted = result.RowsAffected
		return result.Error
	})
	if err != nil {
		return 0, apperr.Transient("likes.DeleteLikePair", err)
	}
	return deleted, nil
}

// ListMatchedPairs pages through matched pairs, one row per pair (the
// direction with the smaller from_user_id), ordered by ID.
func (s *SQLStore) ListMatchedPairs(ctx context.Context, afterID uint, limit int) ([]models.Like, error) {
	var likes []models.Like
	err := s.DB.WithContext(ctx).
		Where("is_match = ? AND from_user_id < to_user_id AND id > ?", true, afterID).
		Order("id asc").
		Limit(limit).
		Find(&likes).Error
	if err != nil {
		return nil, apperr.Transient("likes.ListMatchedPairs", err)
	}
	return likes, nil
}

func (s *SQLStore) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	if c.Status == "" {
		c.Status = models.ComplaintPending
	}
	return apperr.Transient("complaints.Create", s.DB.WithContext(ctx).Create(c).Error)
}

func (s *SQLStore) GetComplaint(ctx context.Context, complaintID string) (*models.Complaint, error) {
	var c models.Complaint
	err := s.DB.WithContext(ctx).Where("complaint_id = ?", complaintID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("complaints.Get", ErrComplaintNotFound)
	}
	if err != nil {
		return nil, apperr.Transient("complaints.Get", err)
	}
	return &c, nil
}

func (s *SQLStore) UpdateComplaintStatus(ctx context.Context, complaintID string, status models.ComplaintStatus) error {
	result := s.DB.WithContext(ctx).Model(&models.Complaint{}).
		Where("complaint_id = ?", complaintID).
		Update("status", status)
	if result.Error != nil {
		return apperr.Transient("complaints.UpdateStatus", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("complaints.UpdateStatus", ErrComplaintNotFound)
	}
	return nil
}

func (s *SQLStore) DeleteComplaintsBefore(ctx context.Context, status models.ComplaintStatus, before time.Time) (int64, error) {
	result := s.DB.WithContext(ctx).
		Where("status = ? AND created_at < ?", status, before).
		Delete(&models.Complaint{})
	if result.Error != nil {
		return 0, apperr.Transient("complaints.DeleteBefore", result.Error)
	}
	return result.RowsAffected, nil
}
