package models_test

import (
	"encoding/json"
	"matchchat/backend/internal/models"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestUserBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestUserBeforeCreate_GeneratesUUID(t *testing.T) {
	// Arrange
	user := &models.User{
		TelegramID: "123456789",
		Name:       "Olena",
		Photos:     pq.StringArray{"photos/1.jpg"},
	}
	assert.Empty(t, user.ID, "User ID should be empty before BeforeCreate")

	// Act
	err := user.BeforeCreate(nil)

	// Assert
	assert.NoError(t, err)
	parsed, parseErr := uuid.Parse(user.ID)
	assert.NoError(t, parseErr, "User ID must be a valid UUID string")
	assert.NotEqual(t, uuid.Nil, parsed)
	assert.Equal(t, models.UserActive, user.Status, "status defaults to active")
}

// TestUserBeforeCreate_PreservesExisting verifies that the hook doesn't overwrite an existing ID or status.
func TestUserBeforeCreate_PreservesExisting(t *testing.T) {
	existingID := uuid.New().String()
	user := &models.User{ID: existingID, TelegramID: "987654321", Status: models.UserBlocked}

	err := user.BeforeCreate(nil)

	assert.NoError(t, err)
	assert.Equal(t, existingID, user.ID)
	assert.Equal(t, models.UserBlocked, user.Status)
}

func TestUser_CanMessage(t *testing.T) {
	tests := []struct {
		status models.UserStatus
		want   bool
	}{
		{models.UserActive, true},
		{models.UserInactive, true},
		{models.UserBlocked, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			u := models.User{Status: tt.status}
			assert.Equal(t, tt.want, u.CanMessage())
		})
	}
}

// TestUserStructTags catches accidental tag removal during refactoring.
func TestUserStructTags(t *testing.T) {
	userType := reflect.TypeOf(models.User{})

	idField, found := userType.FieldByName("ID")
	assert.True(t, found)
	assert.Contains(t, idField.Tag.Get("gorm"), "primaryKey")

	tgField, found := userType.FieldByName("TelegramID")
	assert.True(t, found)
	assert.Contains(t, tgField.Tag.Get("gorm"), "uniqueIndex")

	photos, found := userType.FieldByName("Photos")
	assert.True(t, found)
	assert.Contains(t, photos.Tag.Get("gorm"), "type:text[]")
}

func TestLikeStructTags_UniquePair(t *testing.T) {
	likeType := reflect.TypeOf(models.Like{})
	from, _ := likeType.FieldByName("FromUserID")
	to, _ := likeType.FieldByName("ToUserID")

	assert.Contains(t, from.Tag.Get("gorm"), "uniqueIndex:idx_like_pair")
	assert.Contains(t, to.Tag.Get("gorm"), "uniqueIndex:idx_like_pair")
}

func TestChat_WireShape(t *testing.T) {
	chat := models.Chat{ID: "c1", Participants: [2]string{"A", "B"}, CreatedAt: 1700000000000}

	raw, err := json.Marshal(chat)

	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"c1","participants":["A","B"],"createdAt":1700000000000,"lastMessageId":null}`, string(raw))
	assert.True(t, chat.HasParticipant("B"))
	assert.Equal(t, "A", chat.Partner("B"))
	assert.Equal(t, "", chat.Partner("C"))
}

func TestChatMessage_Valid(t *testing.T) {
	assert.True(t, (&models.ChatMessage{ID: "m", ChatID: "c", FromUser: "A", CreatedAt: 1}).Valid())
	assert.False(t, (&models.ChatMessage{ChatID: "c", FromUser: "A", CreatedAt: 1}).Valid())
	assert.False(t, (&models.ChatMessage{ID: "m", ChatID: "c", FromUser: "A"}).Valid())
}
