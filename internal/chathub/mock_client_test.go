package chathub_test

import (
	"matchchat/backend/internal/models"
	"sync/atomic"
)

type MockClient struct {
	userID      string
	RecvChannel chan models.Envelope
	closed      atomic.Int32
}

func newMockClient(userID string, buffer int) *MockClient {
	return &MockClient{
		userID:      userID,
		RecvChannel: make(chan models.Envelope, buffer),
	}
}

func (c *MockClient) GetUserID() string {
	return c.userID
}

func (c *MockClient) GetSendChannel() chan<- models.Envelope {
	return c.RecvChannel
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.closed.Add(1)
}

func (c *MockClient) Closed() int {
	return int(c.closed.Load())
}
