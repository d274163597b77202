package wshub

import (
	"context"
	"errors"
	"sync"

	"github.com/pointride/dispatch/pkg/logger"
	wrap "github.com/pointride/dispatch/pkg/logger/wrapper"
	"github.com/pointride/dispatch/pkg/uuid"
)

var (
	ErrEmptyConn      = errors.New("connection is empty")
	ErrConnIsNotFound = errors.New("connection not found")
	ErrEmptyRoom      = errors.New("room has no connections")
)

// Hub stores and manages all active WebSocket connections and the named
// rooms they belong to. Rooms address audiences: "rider:<id>",
// "driver:<id>", "drivers", "admins".
type Hub struct {
	clients map[uuid.UUID]*Conn
	rooms   map[string]map[uuid.UUID]struct{}
	l       logger.Logger
	mu      sync.Mutex
}

func NewHub(l logger.Logger) *Hub {
	return &Hub{
		clients: make(map[uuid.UUID]*Conn),
		rooms:   make(map[string]map[uuid.UUID]struct{}),
		l:       l,
	}
}

// Add registers a new connection and joins it to the given rooms.
// An existing connection with the same entityID is closed and replaced.
func (h *Hub) Add(newConn *Conn, rooms ...string) error {
	if newConn == nil {
		return ErrEmptyConn
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := wrap.WithAction(context.Background(), "add_ws_connection")

	if existing, ok := h.clients[newConn.entityID]; ok {
		h.l.Warn(ctx,
			"replacing existing connection",
			"entity_id", existing.entityID,
		)
		if err := existing.Close(); err != nil {
			h.l.Warn(ctx,
				"failed to close existing conn",
				"entity_id", existing.entityID,
				"err", err.Error(),
			)
		}
		h.removeFromRoomsLocked(existing.entityID)
	}

	h.clients[newConn.entityID] = newConn
	for _, room := range rooms {
		h.joinLocked(room, newConn.entityID)
	}

	return nil
}

// Delete removes and closes a connection by ID, leaving all its rooms.
func (h *Hub) Delete(entityID uuid.UUID) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.clients[entityID]
	if !ok {
		return ErrConnIsNotFound
	}

	if err := conn.Close(); err != nil {
		h.l.Warn(wrap.WithAction(context.Background(), "ws_connection_delete"),
			"failed to close conn",
			"entity_id", conn.entityID,
			"err", err.Error(),
		)
	}

	delete(h.clients, entityID)
	h.removeFromRoomsLocked(entityID)

	return nil
}

// SendTo sends a message to one client by ID.
// Returns ErrConnIsNotFound if there is no such connection.
func (h *Hub) SendTo(id uuid.UUID, msg any) error {
	h.mu.Lock()
	conn, ok := h.clients[id]
	h.mu.Unlock()

	if !ok {
		return ErrConnIsNotFound
	}
	return conn.Send(msg)
}

// Broadcast sends a message to every member of a room and returns the number
// of connections the write succeeded for. ErrEmptyRoom when nobody is there.
func (h *Hub) Broadcast(room string, msg any) (int, error) {
	conns := h.roomConns(room)
	if len(conns) == 0 {
		return 0, ErrEmptyRoom
	}

	delivered := 0
	for _, conn := range conns {
		if err := conn.Send(msg); err != nil {
			h.l.Debug(wrap.WithAction(context.Background(), "ws_broadcast"),
				"failed to send to room member",
				"room", room,
				"entity_id", conn.entityID,
				"err", err.Error(),
			)
			continue
		}
		delivered++
	}
	return delivered, nil
}

// RoomSize returns the number of connections currently in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[room])
}

// Close closes every websocket connection.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Conn, 0, len(h.clients))
	for _, conn := range h.clients {
		clients = append(clients, conn)
	}
	h.mu.Unlock()

	for _, conn := range clients {
		_ = h.Delete(conn.entityID)
	}

	h.l.Info(wrap.WithAction(context.Background(), "hub_close"), "all websocket connections closed")
}

func (h *Hub) joinLocked(room string, entityID uuid.UUID) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[uuid.UUID]struct{})
		h.rooms[room] = members
	}
	members[entityID] = struct{}{}
}

func (h *Hub) removeFromRoomsLocked(entityID uuid.UUID) {
	for room, members := range h.rooms {
		delete(members, entityID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// roomConns snapshots room members under the lock; sends happen outside it.
func (h *Hub) roomConns(room string) []*Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := make([]*Conn, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		if conn, ok := h.clients[id]; ok {
			conns = append(conns, conn)
		}
	}
	return conns
}
