package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/task-service/internal/events"
)

// Frame is the wire format exchanged over the realtime channel.
type Frame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// sink abstracts the write side of a websocket connection.
type sink interface {
	WriteJSON(v interface{}) error
}

// connection tracks one admitted client. Writes are serialized because the
// underlying websocket allows a single concurrent writer.
type connection struct {
	id     string
	userID string

	mu   sync.Mutex
	sink sink
}

func (c *connection) send(frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sink.WriteJSON(frame)
}

// Hub owns the registry of live connections and their per-user rooms.
// Membership is keyed by connection id; a user may hold several connections.
type Hub struct {
	logger *zap.Logger

	mu    sync.RWMutex
	conns map[string]*connection
	rooms map[string]map[string]*connection
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger: logger,
		conns:  make(map[string]*connection),
		rooms:  make(map[string]map[string]*connection),
	}
}

// Add admits an authenticated connection and joins it to its user's room,
// returning the connection id used for removal.
func (h *Hub) Add(userID string, s sink) string {
	conn := &connection{id: uuid.NewString(), userID: userID, sink: s}

	h.mu.Lock()
	h.conns[conn.id] = conn
	room, ok := h.rooms[userID]
	if !ok {
		room = make(map[string]*connection)
		h.rooms[userID] = room
	}
	room[conn.id] = conn
	h.mu.Unlock()

	h.logger.Info("realtime connection joined",
		zap.String("connection_id", conn.id),
		zap.String("user_id", userID))
	return conn.id
}

// Remove drops the connection and its room membership.
func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	conn, ok := h.conns[connID]
	if ok {
		delete(h.conns, connID)
		if room, exists := h.rooms[conn.userID]; exists {
			delete(room, connID)
			if len(room) == 0 {
				delete(h.rooms, conn.userID)
			}
		}
	}
	h.mu.Unlock()

	if ok {
		h.logger.Info("realtime connection left",
			zap.String("connection_id", connID),
			zap.String("user_id", conn.userID))
	}
}

// EmitToUser delivers an event to every connection in the user's room.
func (h *Hub) EmitToUser(userID, event string, data interface{}) {
	h.mu.RLock()
	room := h.rooms[userID]
	targets := make([]*connection, 0, len(room))
	for _, conn := range room {
		targets = append(targets, conn)
	}
	h.mu.RUnlock()

	frame := Frame{Event: event, Data: data}
	for _, conn := range targets {
		if err := conn.send(frame); err != nil {
			h.logger.Warn("realtime send failed",
				zap.String("connection_id", conn.id),
				zap.Error(err))
		}
	}
}

// ConnectionCount reports the number of live connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// BindDispatcher forwards task events published by the services to the
// owning user's room.
func (h *Hub) BindDispatcher(d events.Dispatcher) {
	d.Subscribe(events.EventTaskCreated, h.handleTaskEvent)
	d.Subscribe(events.EventTaskUpdated, h.handleTaskEvent)
	d.Subscribe(events.EventTaskDeleted, h.handleTaskEvent)
}

func (h *Hub) handleTaskEvent(_ context.Context, event events.Event) error {
	name := EventTaskUpdated
	if event.Type == events.EventTaskDeleted {
		name = EventTaskDeleted
	}
	h.EmitToUser(event.OwnerID, name, event.Payload)
	return nil
}
