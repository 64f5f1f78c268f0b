// Package chathub holds the WebSocket connections of this instance and
// delivers notification events to them. Rooms are named by user id, so
// sending to a user is sending to that user's room.
package chathub

import (
	"context"
	"encoding/json"
	"matchchat/backend/internal/logger"
	"matchchat/backend/internal/models"

	"go.uber.org/zap"
)

const deliverBuffer = 1024

// Inbound is a frame read from a client.
type Inbound struct {
	UserID string
	Frame  models.InboundFrame
}

// FrameHandler acts on client frames such as typing and read receipts.
type FrameHandler interface {
	HandleFrame(ctx context.Context, userID string, f models.InboundFrame) error
}

// PresenceFunc is told when a user's first connection opens and when the
// last one closes.
type PresenceFunc func(ctx context.Context, userID string, online bool)

type outbound struct {
	room string
	env  models.Envelope
}

// ManagerService owns the room registry. All registry changes happen on the
// Run goroutine.
type ManagerService struct {
	rooms map[string]map[Client]struct{}

	RegisterCh   chan Client
	UnregisterCh chan Client
	IncomingCh   chan Inbound
	deliverCh    chan outbound
	done         chan struct{}

	frames   FrameHandler
	presence PresenceFunc
	log      *zap.Logger
}

// NewManagerService builds a hub. frames and presence may be nil.
func NewManagerService(frames FrameHandler, presence PresenceFunc, log *zap.Logger) *ManagerService {
	return &ManagerService{
		rooms:        make(map[string]map[Client]struct{}),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		IncomingCh:   make(chan Inbound, 64),
		deliverCh:    make(chan outbound, deliverBuffer),
		done:         make(chan struct{}),
		frames:       frames,
		presence:     presence,
		log:          logger.OrNop(log).Named("hub"),
	}
}

// Done is closed when Run returns.
func (m *ManagerService) Done() <-chan struct{} { return m.done }

// SendToUser delivers an event to every connection of userID.
func (m *ManagerService) SendToUser(userID, event string, payload json.RawMessage) {
	m.SendToRoom(userID, event, payload)
}

// SendToRoom queues an event for every client in room. It never blocks;
// when the hub is saturated the event is dropped.
func (m *ManagerService) SendToRoom(room, event string, payload json.RawMessage) {
	select {
	case m.deliverCh <- outbound{room: room, env: models.Envelope{Event: event, Payload: payload}}:
	default:
		m.log.Warn("hub saturated, dropping event", zap.String("room", room), zap.String("event", event))
	}
}

// Run processes registrations, deliveries and inbound frames until ctx is
// done, then closes every client.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			for room, clients := range m.rooms {
				for c := range clients {
					c.Close()
				}
				delete(m.rooms, room)
			}
			return

		case c := <-m.RegisterCh:
			m.register(ctx, c)

		case c := <-m.UnregisterCh:
			m.unregister(ctx, c)

		case out := <-m.deliverCh:
			for c := range m.rooms[out.room] {
				select {
				case c.GetSendChannel() <- out.env:
				default:
					m.log.Warn("client too slow, disconnecting", zap.String("user_id", c.GetUserID()))
					m.unregister(ctx, c)
				}
			}

		case in := <-m.IncomingCh:
			if m.frames == nil {
				continue
			}
			go func(in Inbound) {
				if err := m.frames.HandleFrame(ctx, in.UserID, in.Frame); err != nil {
					m.log.Debug("frame rejected", zap.String("user_id", in.UserID), zap.String("event", in.Frame.Event), zap.Error(err))
				}
			}(in)
		}
	}
}

func (m *ManagerService) register(ctx context.Context, c Client) {
	room := c.GetUserID()
	clients, ok := m.rooms[room]
	if !ok {
		clients = make(map[Client]struct{})
		m.rooms[room] = clients
	}
	clients[c] = struct{}{}
	m.log.Debug("client registered", zap.String("user_id", room), zap.Int("connections", len(clients)))
	if len(clients) == 1 {
		m.notifyPresence(ctx, room, true)
	}
}

func (m *ManagerService) unregister(ctx context.Context, c Client) {
	room := c.GetUserID()
	clients := m.rooms[room]
	if _, ok := clients[c]; !ok {
		return
	}
	delete(clients, c)
	c.Close()
	m.log.Debug("client unregistered", zap.String("user_id", room), zap.Int("connections", len(clients)))
	if len(clients) == 0 {
		delete(m.rooms, room)
		m.notifyPresence(ctx, room, false)
	}
}

func (m *ManagerService) notifyPresence(ctx context.Context, userID string, online bool) {
	if m.presence == nil {
		return
	}
	go m.presence(ctx, userID, online)
}
