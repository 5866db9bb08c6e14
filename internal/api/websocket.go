package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Event is a message pushed to WebSocket subscribers when a snapshot or
// plan changes
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Event types
const (
	EventSnapshotRefreshed = "snapshot_refreshed"
	EventPlanSaved         = "plan_saved"
)

// SnapshotRefreshedData accompanies EventSnapshotRefreshed
type SnapshotRefreshedData struct {
	DocumentID string `json:"documentId"`
	StoryCount int    `json:"storyCount"`
}

// PlanSavedData accompanies EventPlanSaved
type PlanSavedData struct {
	DocumentID   string `json:"documentId"`
	PlanID       string `json:"planId"`
	TotalSprints int    `json:"totalSprints"`
}

// Hub maintains the set of connected WebSocket clients and fans events out
// to them
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan Event

	mu      sync.RWMutex
	clients map[*client]bool
	running bool
	stopped bool
	stopCh  chan struct{}
}

type client struct {
	conn *websocket.Conn
	send chan Event

	mu     sync.Mutex
	closed bool
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan Event, 64),
		clients:    make(map[*client]bool),
		stopCh:     make(chan struct{}),
	}
}

// Run starts the hub's main loop; call it in a goroutine
func (h *Hub) Run() {
	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	for {
		select {
		case <-h.stopCh:
			h.mu.Lock()
			h.running = false
			clients := make([]*client, 0, len(h.clients))
			for c := range h.clients {
				clients = append(clients, c)
			}
			h.clients = make(map[*client]bool)
			h.mu.Unlock()

			// Closing a connection can block on network writes, so it
			// happens after the lock is released.
			for _, c := range clients {
				c.closeNow()
			}
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			registered := h.clients[c]
			delete(h.clients, c)
			h.mu.Unlock()
			if registered {
				c.close()
			}

		case event := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- event:
				default:
					// Slow consumer, drop the connection.
					go func(c *client) {
						select {
						case h.unregister <- c:
						case <-h.stopCh:
						}
					}(c)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Stop shuts the hub down and disconnects all clients. Safe to call more
// than once, and before Run has observed the start.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.stopped {
		h.stopped = true
		close(h.stopCh)
	}
	h.mu.Unlock()
}

// Broadcast queues an event for all connected clients
func (h *Hub) Broadcast(eventType string, data interface{}) {
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()
	if !running {
		return
	}

	select {
	case h.broadcast <- Event{Type: eventType, Data: data, Timestamp: time.Now().UTC()}:
	default:
		// Broadcast buffer full, drop the event.
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWs upgrades the request and services the connection until it closes
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("websocket accept: %v", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan Event, 32),
	}

	select {
	case h.register <- c:
	case <-h.stopCh:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go c.writePump()
	c.readPump(h)
}

// readPump drains incoming frames so pings and close frames are processed
func (c *client) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.stopCh:
			c.closeNow()
		}
	}()

	for {
		var msg map[string]interface{}
		if err := wsjson.Read(context.Background(), c.conn, &msg); err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure &&
				status != websocket.StatusGoingAway && status != -1 {
				log.Printf("websocket read: %v", err)
			}
			return
		}
	}
}

// writePump forwards queued events to the connection
func (c *client) writePump() {
	defer c.close()

	for event := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := wsjson.Write(ctx, c.conn, event)
		cancel()
		if err != nil {
			return
		}
	}
}

func (c *client) close() {
	if c.markClosed() {
		c.conn.Close(websocket.StatusNormalClosure, "closing")
	}
}

// closeNow tears the connection down without a close handshake; used on the
// hub shutdown path where waiting on the peer is not acceptable
func (c *client) closeNow() {
	if c.markClosed() {
		c.conn.CloseNow()
	}
}

func (c *client) markClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}
