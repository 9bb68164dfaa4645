package relay

import (
	"sync"

	"github.com/google/uuid"
	"github.com/lalith-99/campusride/internal/observ"
)

// Hub is the in-process subscription table: which live connections are
// listening to which room. It never touches the database.
//
// Locking: Deliver holds the read lock while queueing, and a client's send
// channel is only closed under the write lock after it has left every room,
// so a frame can never be queued on a closed channel.
type Hub struct {
	mu      sync.RWMutex
	rooms   map[uuid.UUID]map[*Client]struct{}
	clients map[*Client]struct{}
	metrics *observ.Metrics
}

func NewHub(metrics *observ.Metrics) *Hub {
	return &Hub{
		rooms:   make(map[uuid.UUID]map[*Client]struct{}),
		clients: make(map[*Client]struct{}),
		metrics: metrics,
	}
}

// Register tracks a new connection. It belongs to no room yet.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		return
	}
	h.clients[c] = struct{}{}
	h.metrics.RelayConnections.Inc()
}

// Join subscribes c to roomID. Joining twice is a no-op; the return value
// reports whether the subscription is new.
func (h *Hub) Join(roomID uuid.UUID, c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return false
	}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[roomID] = members
	}
	if _, dup := members[c]; dup {
		return false
	}
	members[c] = struct{}{}
	c.rooms[roomID] = struct{}{}
	h.metrics.RelayRooms.Set(float64(len(h.rooms)))
	return true
}

// Leave unsubscribes c from roomID. Leaving a room the client never joined
// is a no-op.
func (h *Hub) Leave(roomID uuid.UUID, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(roomID, c)
}

func (h *Hub) leaveLocked(roomID uuid.UUID, c *Client) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, c)
	delete(c.rooms, roomID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
	h.metrics.RelayRooms.Set(float64(len(h.rooms)))
}

// Unregister drops c from every room and closes its send queue, which
// makes the write pump send a close frame and exit. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID := range c.rooms {
		h.leaveLocked(roomID, c)
	}
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		h.metrics.RelayConnections.Dec()
	}
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// Deliver queues payload on every connection subscribed to roomID and
// returns how many accepted it. A connection whose queue is full misses
// this frame; it can recover the message from history.
func (h *Hub) Deliver(roomID uuid.UUID, payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.rooms[roomID] {
		select {
		case c.send <- payload:
			delivered++
			h.metrics.RelayDelivered.Inc()
		default:
			h.metrics.RelayDropped.Inc()
		}
	}
	return delivered
}

// RoomSize returns the number of connections subscribed to roomID.
func (h *Hub) RoomSize(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Rooms returns the number of rooms with at least one subscriber.
func (h *Hub) Rooms() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// Connections returns the number of registered connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseAll closes every live socket. Each read pump then unregisters its
// own client.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
}
