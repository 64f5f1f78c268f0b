package config

import "time"

const (
	// Chat
	DefaultChatTTL       = 24 * time.Hour
	DefaultArchiveGrace  = 6 * time.Hour
	ChatPreviewTTL       = 60 * time.Second
	MaxMessagesPage      = 100
	DefaultMessagesPage  = 50
	DeletedMessageText   = "This message was deleted"
	ComplaintLogMessages = 20

	// Maintenance
	DefaultLockTTL            = 10 * time.Minute
	ChatCleanupLockKey        = "lock:cleanup:chats"
	MatchCleanupLockKey       = "lock:cleanup:matches"
	ComplaintLockKey          = "lock:cleanup:complaints"
	ArchivePrefix             = "archives/chats"
	MatchCleanupBatch         = 200
	DefaultComplaintRetention = 30 * 24 * time.Hour

	// Complaints
	BlockWeightThreshold = 250
)

// ComplaintWeights maps a complaint severity to its weight. A confirmed
// complaint whose weight reaches BlockWeightThreshold blocks the target.
var ComplaintWeights = map[string]int{
	"Low":      5,
	"Medium":   50,
	"Critical": 250,
}

// ComplaintWeight returns the weight for a severity, 0 if unknown.
func ComplaintWeight(severity string) int {
	return ComplaintWeights[severity]
}
