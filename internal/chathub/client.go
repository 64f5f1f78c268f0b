package chathub

import "matchchat/backend/internal/models"

// Client is one live connection of a user. A user may hold several, one per
// device, and each joins the room named by its user id.
type Client interface {
	// GetUserID returns the Telegram id of the authenticated user.
	GetUserID() string

	// GetSendChannel returns the channel the hub writes outgoing envelopes to.
	GetSendChannel() chan<- models.Envelope

	// Run starts the client's read and write pumps.
	Run()
	// Close is called by the hub exactly once, after the client is removed.
	Close()
}
