// Package realtime is the push channel: named rooms of websocket connections
// with broadcast and targeted sends.
package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event is the envelope of every server-to-client message.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Broadcaster is the push surface the engine depends on.
type Broadcaster interface {
	Broadcast(room string, ev Event)
	SendTo(room string, userID uuid.UUID, ev Event)
	CloseRoom(room string)
}

// SessionRoom names the room of a session.
func SessionRoom(sessionID uuid.UUID) string {
	return "session:" + sessionID.String()
}

// OutBuffer is the per-connection queue depth before events are dropped.
const OutBuffer = 64

// Connection is one client's presence in a room.
type Connection struct {
	UserID  uuid.UUID
	Room    string
	OutChan chan Event
	Cancel  func()

	closed bool // guarded by Hub.mu
}

// NewConnection creates a connection with a buffered outbound queue.
func NewConnection(room string, userID uuid.UUID, cancel func()) *Connection {
	if cancel == nil {
		cancel = func() {}
	}
	return &Connection{
		UserID:  userID,
		Room:    room,
		OutChan: make(chan Event, OutBuffer),
		Cancel:  cancel,
	}
}

// Hub tracks rooms. Sends never block: a full queue drops the event.
type Hub struct {
	mu     sync.Mutex
	rooms  map[string]map[*Connection]struct{}
	logger *logrus.Logger
}

var _ Broadcaster = (*Hub)(nil)

// NewHub returns an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Connection]struct{}),
		logger: logger,
	}
}

// Join registers conn in its room.
func (h *Hub) Join(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[conn.Room]
	if !ok {
		room = make(map[*Connection]struct{})
		h.rooms[conn.Room] = room
	}
	room[conn] = struct{}{}
}

// Leave unregisters conn and closes its queue. Safe to call more than once.
func (h *Hub) Leave(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(conn)
}

func (h *Hub) removeLocked(conn *Connection) {
	if room, ok := h.rooms[conn.Room]; ok {
		delete(room, conn)
		if len(room) == 0 {
			delete(h.rooms, conn.Room)
		}
	}
	if !conn.closed {
		conn.closed = true
		close(conn.OutChan)
	}
}

func (h *Hub) sendLocked(conn *Connection, ev Event) {
	if conn.closed {
		return
	}
	select {
	case conn.OutChan <- ev:
	default:
		if h.logger != nil {
			h.logger.WithFields(logrus.Fields{
				"room": conn.Room,
				"user": conn.UserID,
				"type": ev.Type,
			}).Warn("outbound queue full, dropping event")
		}
	}
}

// Broadcast queues ev for every connection in room.
func (h *Hub) Broadcast(room string, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.rooms[room] {
		h.sendLocked(conn, ev)
	}
}

// SendTo queues ev for every connection of userID in room.
func (h *Hub) SendTo(room string, userID uuid.UUID, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.rooms[room] {
		if conn.UserID == userID {
			h.sendLocked(conn, ev)
		}
	}
}

// Send queues ev for a single connection.
func (h *Hub) Send(conn *Connection, ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sendLocked(conn, ev)
}

// CloseRoom removes every connection in room and closes their queues.
// Events already queued are still delivered by the write pump before it
// closes the socket.
func (h *Hub) CloseRoom(room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.rooms[room] {
		h.removeLocked(conn)
	}
}

// Count returns the number of connections in room.
func (h *Hub) Count(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// Connected reports whether userID has at least one live connection in room.
func (h *Hub) Connected(room string, userID uuid.UUID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.rooms[room] {
		if conn.UserID == userID {
			return true
		}
	}
	return false
}
