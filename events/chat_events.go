package events

import (
	"encoding/json"
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// DeliveryEvent carries one outbound frame and the connections that must
// receive it.
type DeliveryEvent struct {
	Scope        string          `json:"scope"`
	RoomID       string          `json:"room_id,omitempty"`
	ConnectionID string          `json:"connection_id,omitempty"`
	Recipients   []string        `json:"recipients"`
	Event        string          `json:"event"`
	Payload      json.RawMessage `json:"payload"`
}

// MessageAppendedEvent is emitted after a room message is stored.
type MessageAppendedEvent struct {
	MessageID  string    `json:"message_id"`
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	Delivered  bool      `json:"delivered"`
	Timestamp  time.Time `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	DeliveryV1 = helper.EventDefinition[DeliveryEvent](
		"chat",
		"Delivery",
		"v1",
	)

	MessageAppendedV1 = helper.EventDefinition[MessageAppendedEvent](
		"chat",
		"MessageAppended",
		"v1",
	)
)
