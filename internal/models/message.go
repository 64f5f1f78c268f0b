package models

type ReadState string

const (
	Unread ReadState = "Unread"
	Read   ReadState = "Read"
)

// Media is an optional attachment stored in object storage.
type Media struct {
	Type string `json:"type"` // "photo", "video", "voice"
	URL  string `json:"url"`
}

// ChatMessage is stored as a field of the chat:{id}:messages hash, keyed by ID.
type ChatMessage struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	FromUser  string    `json:"fromUser"`
	ToUser    string    `json:"toUser"`
	Text      string    `json:"text"`
	CreatedAt int64     `json:"createdAt"` // unix ms, also the order index score
	UpdatedAt int64     `json:"updatedAt"`
	ReadState ReadState `json:"readState"`
	IsDeleted bool      `json:"isDeleted"`
	Media     *Media    `json:"media,omitempty"`
}

// Valid rejects entries that decoded but are not usable messages.
func (m *ChatMessage) Valid() bool {
	return m.ID != "" && m.ChatID != "" && m.FromUser != "" && m.CreatedAt > 0
}
