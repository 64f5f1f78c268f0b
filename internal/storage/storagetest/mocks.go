// Package storagetest provides testify mocks of the relational stores.
package storagetest

import (
	"context"
	"matchchat/backend/internal/models"
	"time"

	"github.com/stretchr/testify/mock"
)

type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) FindByTelegramID(ctx context.Context, telegramID string) (*models.User, error) {
	args := m.Called(ctx, telegramID)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserDirectory) SaveUserIfNotExists(ctx context.Context, telegramID, name string) (*models.User, error) {
	args := m.Called(ctx, telegramID, name)
	user, _ := args.Get(0).(*models.User)
	return user, args.Error(1)
}

func (m *MockUserDirectory) SetUserStatus(ctx context.Context, telegramID string, status models.UserStatus) error {
	args := m.Called(ctx, telegramID, status)
	return args.Error(0)
}

// ActiveUser registers telegramID as an active, resolvable user.
func (m *MockUserDirectory) ActiveUser(telegramID string) *mock.Call {
	return m.On("FindByTelegramID", mock.Anything, telegramID).
		Return(&models.User{ID: "id-" + telegramID, TelegramID: telegramID, Status: models.UserActive}, nil)
}

type MockLikeStore struct {
	mock.Mock
}

func (m *MockLikeStore) GetLike(ctx context.Context, fromUserID, toUserID string) (*models.Like, error) {
	args := m.Called(ctx, fromUserID, toUserID)
	like, _ := args.Get(0).(*models.Like)
	return like, args.Error(1)
}

func (m *MockLikeStore) CreateLike(ctx context.Context, like *models.Like) error {
	args := m.Called(ctx, like)
	return args.Error(0)
}

func (m *MockLikeStore) SetMatch(ctx context.Context, fromUserID, toUserID string, isMatch bool) (bool, error) {
	args := m.Called(ctx, fromUserID, toUserID, isMatch)
	return args.Bool(0), args.Error(1)
}

func (m *MockLikeStore) DeleteLike(ctx context.Context, fromUserID, toUserID string) (bool, error) {
	args := m.Called(ctx, fromUserID, toUserID)
	return args.Bool(0), args.Error(1)
}

func (m *MockLikeStore) DeleteLikePair(ctx context.Context, userA, userB string) (int64, error) {
	args := m.Called(ctx, userA, userB)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLikeStore) ListMatchedPairs(ctx context.Context, afterID uint, limit int) ([]models.Like, error) {
	args := m.Called(ctx, afterID, limit)
	likes, _ := args.Get(0).([]models.Like)
	return likes, args.Error(1)
}

type MockComplaintStore struct {
	mock.Mock
}

func (m *MockComplaintStore) CreateComplaint(ctx context.Context, c *models.Complaint) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockComplaintStore) GetComplaint(ctx context.Context, complaintID string) (*models.Complaint, error) {
	args := m.Called(ctx, complaintID)
	c, _ := args.Get(0).(*models.Complaint)
	return c, args.Error(1)
}

func (m *MockComplaintStore) UpdateComplaintStatus(ctx context.Context, complaintID string, status models.ComplaintStatus) error {
	args := m.Called(ctx, complaintID, status)
	return args.Error(0)
}

func (m *MockComplaintStore) DeleteComplaintsBefore(ctx context.Context, status models.ComplaintStatus, before time.Time) (int64, error) {
	args := m.Called(ctx, status, before)
	return args.Get(0).(int64), args.Error(1)
}
