package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gofiber/contrib/websocket"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is a registered websocket connection.
type Client struct {
	ID   string
	Conn Conn
}

// Frame is the wire envelope of every outbound message.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// delivery is one encoded frame and its recipients. A nil recipient list
// means every client.
type delivery struct {
	recipients []string
	data       []byte
}

// Hub owns the websocket connections. Only the Run goroutine writes to them.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan string
	deliver    chan *delivery
	done       chan struct{}
	mu         sync.RWMutex

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan string),
		deliver:    make(chan *delivery, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Println("[hub] Shutting down...")
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case id := <-h.unregister:
			h.handleUnregister(id)
		case d := <-h.deliver:
			h.handleDeliver(d)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		_ = client.Conn.Close()
	}
	h.clients = make(map[string]*Client)
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client.ID] = client
	log.Printf("[hub] Client %s registered", client.ID)
}

func (h *Hub) handleUnregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		log.Printf("[hub] Client %s unregistered", id)
	}
}

func (h *Hub) handleDeliver(d *delivery) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if d.recipients == nil {
		for _, client := range h.clients {
			h.sendToClient(client, d.data)
		}
		return
	}
	for _, id := range d.recipients {
		client, ok := h.clients[id]
		if !ok {
			h.dropped.Add(1)
			continue
		}
		h.sendToClient(client, d.data)
	}
}

func (h *Hub) sendToClient(client *Client, data []byte) {
	if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.dropped.Add(1)
		log.Printf("[hub] Failed to send to client %s: %v", client.ID, err)
		return
	}
	h.sent.Add(1)
}

// Register adds a client to the hub. Frames queued after Register returns
// reach the client.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(id string) {
	select {
	case h.unregister <- id:
	case <-h.done:
	}
}

// Deliver queues a frame for recipients. A nil recipient list sends to every
// client; an empty one sends to nobody.
func (h *Hub) Deliver(recipients []string, event string, payload json.RawMessage) error {
	if recipients != nil && len(recipients) == 0 {
		return nil
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	data, err := json.Marshal(Frame{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", event, err)
	}
	select {
	case h.deliver <- &delivery{recipients: recipients, data: data}:
	case <-h.done:
	}
	return nil
}

// SendTo queues a frame for a single client.
func (h *Hub) SendTo(id, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", event, err)
	}
	return h.Deliver([]string{id}, event, data)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns how many frames were written and dropped.
func (h *Hub) Stats() (sent, dropped uint64) {
	return h.sent.Load(), h.dropped.Load()
}
