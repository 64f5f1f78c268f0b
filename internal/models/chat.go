package models

// Chat is the metadata record stored under chat:{id}.
type Chat struct {
	ID            string    `json:"id"`
	Participants  [2]string `json:"participants"`
	CreatedAt     int64     `json:"createdAt"` // unix ms
	LastMessageID *string   `json:"lastMessageId"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Chat) HasParticipant(userID string) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// Partner returns the other participant, or "" if userID is not in the chat.
func (c *Chat) Partner(userID string) string {
	switch userID {
	case c.Participants[0]:
		return c.Participants[1]
	case c.Participants[1]:
		return c.Participants[0]
	}
	return ""
}

// UserChatIndex is one entry of user:{telegramId}:chats.
type UserChatIndex struct {
	ChatID            string `json:"chatId"`
	LastReadMessageID string `json:"lastReadMessageId,omitempty"`
}

// ChatPreview is what a chat list shows for one chat.
type ChatPreview struct {
	Chat        Chat         `json:"chat"`
	PartnerID   string       `json:"partnerId"`
	LastMessage *ChatMessage `json:"lastMessage,omitempty"`
	UnreadCount int          `json:"unreadCount"`
}
