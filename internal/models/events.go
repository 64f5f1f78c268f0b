package models

import "encoding/json"

// Channel names a fixed notification channel.
type Channel string

const (
	ChannelNewMessage      Channel = "new-message"
	ChannelMessageRead     Channel = "message-read"
	ChannelTypingStatus    Channel = "typing-status"
	ChannelNewLike         Channel = "new-like"
	ChannelNewMatch        Channel = "new-match"
	ChannelMatchCancelled  Channel = "match-cancelled"
	ChannelComplaintUpdate Channel = "complaint-update"
	ChannelUserStatus      Channel = "user-status"
	ChannelChatDeleted     Channel = "chat-deleted"
)

// AllChannels is the full set a subscriber listens on.
var AllChannels = []Channel{
	ChannelNewMessage,
	ChannelMessageRead,
	ChannelTypingStatus,
	ChannelNewLike,
	ChannelNewMatch,
	ChannelMatchCancelled,
	ChannelComplaintUpdate,
	ChannelUserStatus,
	ChannelChatDeleted,
}

type NewMessageEvent struct {
	ChatID      string `json:"chatId"`
	MessageID   string `json:"messageId"`
	SenderID    string `json:"senderId"`
	RecipientID string `json:"recipientId"`
	Text        string `json:"text"`
	Timestamp   int64  `json:"timestamp"`
	MediaType   string `json:"media_type,omitempty"`
	MediaURL    string `json:"media_url,omitempty"`
	Edited      bool   `json:"edited,omitempty"`
	Deleted     bool   `json:"deleted,omitempty"`
}

type MessageReadEvent struct {
	ChatID            string `json:"chatId"`
	ReaderID          string `json:"readerId"`
	RecipientID       string `json:"recipientId"`
	LastReadMessageID string `json:"lastReadMessageId"`
	Timestamp         int64  `json:"timestamp"`
}

type TypingEvent struct {
	ChatID      string `json:"chatId"`
	UserID      string `json:"userId"`
	RecipientID string `json:"recipientId"`
	IsTyping    bool   `json:"isTyping"`
	Timestamp   int64  `json:"timestamp"`
}

type LikeEvent struct {
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	Timestamp  int64  `json:"timestamp"`
}

type MatchEvent struct {
	User1ID   string `json:"user1Id"`
	User2ID   string `json:"user2Id"`
	ChatID    string `json:"chatId"`
	Timestamp int64  `json:"timestamp"`
}

type MatchCancelledEvent struct {
	User1ID   string `json:"user1Id"`
	User2ID   string `json:"user2Id"`
	ChatID    string `json:"chatId,omitempty"`
	Reason    string `json:"reason,omitempty"` // "unlike", "expired"
	Timestamp int64  `json:"timestamp"`
}

type ComplaintUpdateEvent struct {
	ComplaintID string          `json:"complaintId"`
	UserID      string          `json:"userId"`
	Status      ComplaintStatus `json:"status"`
	Timestamp   int64           `json:"timestamp"`
}

type UserStatusEvent struct {
	UserID        string   `json:"userId"`
	Status        string   `json:"status"` // "online", "offline"
	NotifyUserIDs []string `json:"notifyUserIds"`
	Timestamp     int64    `json:"timestamp"`
}

type ChatDeletedEvent struct {
	ChatID       string    `json:"chatId"`
	Participants [2]string `json:"participants"`
	Timestamp    int64     `json:"timestamp"`
}

// Envelope is what a connection holder writes to a WebSocket.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// InboundFrame is a client-to-server WebSocket frame.
type InboundFrame struct {
	Event             string `json:"event"` // "typing", "read"
	ChatID            string `json:"chatId"`
	IsTyping          bool   `json:"isTyping,omitempty"`
	LastReadMessageID string `json:"lastReadMessageId,omitempty"`
}
