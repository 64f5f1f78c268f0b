// Package notifytest records published events for assertions.
package notifytest

import (
	"context"
	"matchchat/backend/internal/models"
	"sync"
)

type Event struct {
	Channel models.Channel
	Payload any
}

// Recorder is a notify.Publisher that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, channel models.Channel, payload any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Channel: channel, Payload: payload})
}

// On returns the payloads published on channel, oldest first.
func (r *Recorder) On(channel models.Channel) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, e := range r.events {
		if e.Channel == channel {
			out = append(out, e.Payload)
		}
	}
	return out
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}
