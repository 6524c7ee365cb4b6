package ws

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Client is one live websocket connection bound to an authenticated user.
type Client struct {
	ID     string
	UserID uint
	Conn   *websocket.Conn
	Send   chan Event

	ctx    context.Context
	cancel context.CancelFunc
}

// Hub is the connection registry: clients per user plus an explicit table
// mapping channel ids to the set of subscribed connections.
type Hub struct {
	mu       sync.RWMutex
	clients  map[uint]map[*Client]struct{}
	channels map[string]map[*Client]struct{}
	// subscriptions per client, for cleanup on disconnect
	subs map[*Client]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:  map[uint]map[*Client]struct{}{},
		channels: map[string]map[*Client]struct{}{},
		subs:     map[*Client]map[string]struct{}{},
	}
}

func (h *Hub) AddClient(userID uint, conn *websocket.Conn) *Client {
	c := h.register(userID, conn)

	go c.writeLoop()
	go c.keepAliveLoop()

	return c
}

// register creates the client and inserts it into the registry without
// starting its goroutines.
func (h *Hub) register(userID uint, conn *websocket.Conn) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan Event, 64),
		ctx:    ctx,
		cancel: cancel,
	}

	h.mu.Lock()
	if h.clients[userID] == nil {
		h.clients[userID] = map[*Client]struct{}{}
	}
	h.clients[userID][c] = struct{}{}
	h.subs[c] = map[string]struct{}{}
	h.mu.Unlock()

	return c
}

// RemoveClient drops the connection from the registry and all of its
// channel subscriptions, then closes the socket.
func (h *Hub) RemoveClient(c *Client) {
	c.cancel()

	h.mu.Lock()
	if set, ok := h.clients[c.UserID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.UserID)
		}
	}
	for channel := range h.subs[c] {
		if members, ok := h.channels[channel]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.channels, channel)
			}
		}
	}
	delete(h.subs, c)
	h.mu.Unlock()

	if c.Conn != nil {
		_ = c.Conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

// Subscribe adds the connection to a channel's broadcast set.
func (h *Hub) Subscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[c]; !ok {
		// already removed, ignore
		return
	}
	if h.channels[channel] == nil {
		h.channels[channel] = map[*Client]struct{}{}
	}
	h.channels[channel][c] = struct{}{}
	h.subs[c][channel] = struct{}{}
}

func (h *Hub) Unsubscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.channels[channel]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.channels, channel)
		}
	}
	delete(h.subs[c], channel)
}

// BroadcastToChannel delivers the event to every connection subscribed to
// the channel. except, when non-nil, is skipped (typing events never echo
// back to their sender). Delivery is best-effort: a full send buffer drops
// the event for that connection.
func (h *Hub) BroadcastToChannel(channel string, ev Event, except *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.channels[channel] {
		if c == except {
			continue
		}
		c.enqueue(ev)
	}
}

// BroadcastToAll delivers the event to every live connection except one.
// Used for presence transitions.
func (h *Hub) BroadcastToAll(ev Event, except *Client) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, set := range h.clients {
		for c := range set {
			if c == except {
				continue
			}
			c.enqueue(ev)
		}
	}
}

// NotifyUser delivers the event to the user's personal channel. Connections
// already subscribed to exceptChannel are skipped so a recipient who is
// viewing the parent conversation or room does not get the event twice.
func (h *Hub) NotifyUser(userID uint, exceptChannel string, ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.channels[UserChannel(userID)] {
		if exceptChannel != "" {
			if _, ok := h.subs[c][exceptChannel]; ok {
				continue
			}
		}
		c.enqueue(ev)
	}
}

// ConnectionCount reports the number of live connections for a user.
func (h *Hub) ConnectionCount(userID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (c *Client) enqueue(ev Event) {
	select {
	case c.Send <- ev:
	default:
		// buffer full, drop for this recipient
	}
}

// writeLoop drains Send until the client's context is cancelled. Send is
// never closed: a broadcast can still hold the hub lock and enqueue while
// the connection is being torn down, and sending on a closed channel would
// take the whole process down.
func (c *Client) writeLoop() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev := <-c.Send:
			writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			_ = wsjson.Write(writeCtx, c.Conn, ev)
			cancel()
		}
	}
}

func (c *Client) keepAliveLoop() {
	ticker := time.NewTicker(25 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = c.Conn.Ping(pingCtx)
			cancel()
		}
	}
}
