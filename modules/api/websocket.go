package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/example/realtime-chat/modules/broadcast"
	"github.com/example/realtime-chat/modules/chat"
	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// callTimeout bounds each chat service call made on behalf of a socket.
const callTimeout = 5 * time.Second

// handleWebSocket handles WebSocket connections at /ws.
//
// The hub is the only writer of the socket. This goroutine reads frames and
// forwards them to the chat module, whose effects come back through the hub.
func (m *APIModule) handleWebSocket(c *websocket.Conn) {
	connID := uuid.New().String()

	// Register first so the connected greeting has somewhere to go.
	m.hub.Register(&broadcast.Client{ID: connID, Conn: c})

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	user, err := m.chatAdapter.Connect(ctx, connID)
	cancel()
	if err != nil {
		log.Printf("[api] Failed to open chat session for %s: %v", connID, err)
		m.hub.Unregister(connID)
		return
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		if err := m.chatAdapter.Disconnect(ctx, connID); err != nil {
			log.Printf("[api] Failed to close chat session for %s: %v", connID, err)
		}
		m.hub.Unregister(connID)
		if m.guard != nil {
			m.guard.Forget(connID)
		}
		log.Printf("[api] WebSocket client disconnected: %s", connID)
	}()

	log.Printf("[api] WebSocket client connected: %s (%s)", connID, user.Username)

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[api] Client %s closed connection", connID)
			} else {
				log.Printf("[api] Read error from %s: %v", connID, err)
			}
			return
		}
		m.handleFrame(connID, data)
	}
}

// handleFrame forwards one inbound text frame to the chat module.
func (m *APIModule) handleFrame(connID string, data []byte) {
	var frame broadcast.Frame
	if err := json.Unmarshal(data, &frame); err != nil || frame.Event == "" {
		m.logger.Debug("ignoring malformed frame", "conn", connID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	if m.guard != nil {
		if ok, retryAfter := m.guard.Allow(ctx, connID); !ok {
			m.logger.Debug("frame rate limited", "conn", connID, "event", frame.Event, "retry_after", retryAfter)
			m.sendError(connID, "rate_limited", fmt.Sprintf("Too many events, retry in %s", retryAfter.Round(time.Millisecond)))
			return
		}
	}

	resp, err := m.chatAdapter.HandleEvent(ctx, connID, frame.Event, frame.Data)
	if err != nil {
		m.logger.Error("chat event failed", "conn", connID, "event", frame.Event, "error", err)
		return
	}
	if resp.Rejected != "" {
		m.logger.Debug("chat event rejected", "conn", connID, "event", frame.Event, "class", resp.Rejected)
	}
}

func (m *APIModule) sendError(connID, code, message string) {
	if err := m.hub.SendTo(connID, chat.OutError, chat.ErrorPayload{Code: code, Message: message}); err != nil {
		log.Printf("[api] Failed to send error to %s: %v", connID, err)
	}
}
