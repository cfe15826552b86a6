// Package stream pushes dashboard updates to browser clients over WebSocket.
package stream

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/rewired-gh/eaanalyzer/internal/logger"
)

// Message is the envelope of every frame sent to clients.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub fans messages out to all registered clients. Clients whose send
// buffer is full are dropped.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once

	mu      sync.RWMutex
	dropped atomic.Int64
	origins *OriginChecker
}

// NewHub creates a Hub accepting upgrades from allowedOrigins.
// An empty list or "*" accepts any origin.
func NewHub(allowedOrigins []string) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		origins:    NewOriginChecker(allowedOrigins),
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			logger.Debug("Stream client connected (%d total)", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			logger.Debug("Stream client disconnected (%d total)", n)

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					delete(h.clients, client)
					close(client.send)
					logger.Warn("Dropping slow stream client")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends Run and closes every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast encodes msg and queues it for every client. When the queue is
// full the message is dropped and counted.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to encode stream message: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
		h.dropped.Add(1)
	}
}

// BroadcastSnapshot sends a snapshot frame.
func (h *Hub) BroadcastSnapshot(view interface{}) {
	h.Broadcast(Message{Type: "snapshot", Data: view})
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages returns how many broadcasts were dropped on a full queue.
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}

// OriginChecker validates the Origin header of upgrade requests.
type OriginChecker struct {
	allowed  map[string]struct{}
	allowAll bool
}

// NewOriginChecker builds a checker. An empty list or "*" allows all.
func NewOriginChecker(origins []string) *OriginChecker {
	c := &OriginChecker{allowed: make(map[string]struct{})}
	for _, o := range origins {
		if o == "*" {
			c.allowAll = true
		}
		if o != "" {
			c.allowed[o] = struct{}{}
		}
	}
	if len(c.allowed) == 0 {
		c.allowAll = true
	}
	return c
}

// Check reports whether origin may connect. Non-browser clients send none.
func (c *OriginChecker) Check(origin string) bool {
	if origin == "" || c.allowAll {
		return true
	}
	_, ok := c.allowed[origin]
	return ok
}
