package models

import "time"

// Like is one direction of a relation between two users. A pair of likes in
// both directions is a match, and then both rows carry IsMatch=true.
type Like struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	FromUserID string    `gorm:"not null;uniqueIndex:idx_like_pair" json:"fromUserId"`
	ToUserID   string    `gorm:"not null;uniqueIndex:idx_like_pair;index" json:"toUserId"`
	IsMatch    bool      `gorm:"not null;default:false;index" json:"isMatch"`
	IsRead     bool      `gorm:"not null;default:false" json:"isRead"`
	CreatedAt  time.Time `json:"createdAt"`
}
