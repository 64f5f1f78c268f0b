package models

import "time"

type ComplaintStatus string

const (
	ComplaintPending   ComplaintStatus = "pending"
	ComplaintConfirmed ComplaintStatus = "confirmed"
	ComplaintRejected  ComplaintStatus = "rejected"
)

// Complaint is a report filed by one chat participant against the other.
type Complaint struct {
	ComplaintID    string          `gorm:"primaryKey" json:"complaintId"`
	ReporterID     string          `gorm:"index;not null" json:"reporterId"`
	TargetID       string          `gorm:"index;not null" json:"targetId"`
	ChatID         string          `json:"chatId"`
	Reason         string          `json:"reason"`
	Severity       string          `json:"severity"` // "Low", "Medium", "Critical"
	LoggedMessages string          `gorm:"type:text" json:"loggedMessages"` // JSON snapshot of recent messages
	Status         ComplaintStatus `gorm:"type:text;index;not null" json:"status"`
	CreatedAt      time.Time       `gorm:"index" json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}
