package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// UserStatus gates what an account may do.
type UserStatus string

const (
	UserActive   UserStatus = "active"
	UserInactive UserStatus = "inactive"
	UserBlocked  UserStatus = "blocked"
)

// User is a profile owned by the user directory. Chats and likes refer to
// users by TelegramID.
type User struct {
	ID         string         `gorm:"primaryKey" json:"id"`
	TelegramID string         `gorm:"uniqueIndex;not null" json:"telegramId"`
	Name       string         `json:"name"`
	Status     UserStatus     `gorm:"type:text;not null;default:active" json:"status"`
	Photos     pq.StringArray `gorm:"type:text[]" json:"photos"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// BeforeCreate generates a UUID for the user if ID is not set yet.
func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.Status == "" {
		u.Status = UserActive
	}
	return
}

// CanMessage reports whether the account may send messages or likes.
func (u *User) CanMessage() bool {
	return u.Status != UserBlocked
}
