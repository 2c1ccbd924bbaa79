// Package hub implements per-project room messaging. A client joins the room
// for one project and every payload it publishes fans out to all other
// members of the same room. The hub is transport-agnostic; the websocket
// layer binds one connection to one client.
package hub

import (
	"encoding/json"
	"fmt"
	"sync"
)

// Handler consumes one delivered payload for a subscribed event.
type Handler func(payload json.RawMessage)

// Hub is the room registry.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]struct{}
}

// New returns an empty Hub.
func New() *Hub {
	return &Hub{rooms: make(map[string]map[*Client]struct{})}
}

// NewClient registers a connection-scoped participant. The client belongs to
// no room until Join is called.
func (h *Hub) NewClient() *Client {
	return &Client{
		hub:      h,
		handlers: make(map[string]Handler),
	}
}

// RoomSize reports the number of clients currently joined to a project room.
func (h *Hub) RoomSize(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[projectID])
}

// Client is one participant connection.
type Client struct {
	hub *Hub

	mu       sync.RWMutex
	room     string
	handlers map[string]Handler
	closed   bool
}

// Join associates the client with a project room, leaving any previous room
// first. Joining the same room twice is a no-op.
func (c *Client) Join(projectID string) {
	c.mu.Lock()
	if c.closed || c.room == projectID {
		c.mu.Unlock()
		return
	}
	previous := c.room
	c.room = projectID
	c.mu.Unlock()

	h := c.hub
	h.mu.Lock()
	if previous != "" {
		h.removeLocked(previous, c)
	}
	members, ok := h.rooms[projectID]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[projectID] = members
	}
	members[c] = struct{}{}
	h.mu.Unlock()
}

// Subscribe registers exactly one handler per event name. Re-subscribing
// replaces the previous handler rather than stacking a second one, so a
// reconnect never causes duplicate delivery.
func (c *Client) Subscribe(event string, handler Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if handler == nil {
		delete(c.handlers, event)
		return
	}
	c.handlers[event] = handler
}

// Publish fans payload out to every other member of the client's room. The
// publisher itself is skipped; the local optimistic echo is the caller's
// concern. Delivery order across publishers is arrival order at the hub.
func (c *Client) Publish(event string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}

	c.mu.RLock()
	room := c.room
	closed := c.closed
	c.mu.RUnlock()
	if closed || room == "" {
		return nil
	}

	h := c.hub
	h.mu.RLock()
	recipients := make([]*Client, 0, len(h.rooms[room]))
	for member := range h.rooms[room] {
		if member != c {
			recipients = append(recipients, member)
		}
	}
	h.mu.RUnlock()

	for _, member := range recipients {
		member.deliver(event, raw)
	}
	return nil
}

// Close detaches the client from its room and drops all subscriptions.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	room := c.room
	c.room = ""
	c.handlers = make(map[string]Handler)
	c.mu.Unlock()

	if room != "" {
		c.hub.mu.Lock()
		c.hub.removeLocked(room, c)
		c.hub.mu.Unlock()
	}
}

func (c *Client) deliver(event string, payload json.RawMessage) {
	c.mu.RLock()
	handler := c.handlers[event]
	closed := c.closed
	c.mu.RUnlock()
	if closed || handler == nil {
		return
	}
	handler(payload)
}

func (h *Hub) removeLocked(room string, c *Client) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}
