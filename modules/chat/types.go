package chat

import (
	"context"
	"encoding/json"

	domain "github.com/example/realtime-chat/domain/chat"
)

// Service names registered by the chat module.
const (
	ServiceConnect        = "connect"
	ServiceDisconnect     = "disconnect"
	ServiceHandleEvent    = "handle-event"
	ServiceListRooms      = "list-rooms"
	ServiceListUsers      = "list-users"
	ServiceGetMessages    = "get-messages"
	ServiceSearchMessages = "search-messages"
)

// ConnectRequest opens a session for a transport connection.
type ConnectRequest struct {
	ConnectionID string `json:"connection_id"`
}

// ConnectResponse returns the generated user of the new session.
type ConnectResponse struct {
	User domain.User `json:"user"`
}

// DisconnectRequest closes a session.
type DisconnectRequest struct {
	ConnectionID string `json:"connection_id"`
}

// DisconnectResponse reports how many effects the disconnect produced.
type DisconnectResponse struct {
	Effects int `json:"effects"`
}

// HandleEventRequest carries one inbound frame.
type HandleEventRequest struct {
	ConnectionID string          `json:"connection_id"`
	Event        string          `json:"event"`
	Data         json.RawMessage `json:"data"`
}

// HandleEventResponse reports the outcome of an inbound frame. Rejected frames
// are not service errors; Rejected carries the error class instead.
type HandleEventResponse struct {
	Effects  int    `json:"effects"`
	Rejected string `json:"rejected,omitempty"`
}

// ListRoomsRequest lists every room.
type ListRoomsRequest struct{}

// ListRoomsResponse is the room listing.
type ListRoomsResponse struct {
	Rooms []domain.RoomSummary `json:"rooms"`
	Total int                  `json:"total"`
}

// ListUsersRequest lists online users, optionally only a room's members.
type ListUsersRequest struct {
	RoomID string `json:"room_id,omitempty"`
}

// ListUsersResponse is the user listing.
type ListUsersResponse struct {
	Users []domain.User `json:"users"`
	Total int           `json:"total"`
}

// GetMessagesRequest asks for one page of history.
type GetMessagesRequest struct {
	RoomID string `json:"room_id"`
	Before string `json:"before,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// GetMessagesResponse is one page of history, newest first.
type GetMessagesResponse struct {
	Found    bool             `json:"found"`
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

// SearchRequest searches a room's history.
type SearchRequest struct {
	RoomID string `json:"room_id"`
	Query  string `json:"query"`
}

// SearchResponse holds matching messages, newest first.
type SearchResponse struct {
	Found    bool             `json:"found"`
	Messages []domain.Message `json:"messages"`
	Total    int              `json:"total"`
}

// ChatPort defines the interface driving adapters use to reach the chat engine.
type ChatPort interface {
	Connect(ctx context.Context, connID string) (domain.User, error)
	Disconnect(ctx context.Context, connID string) error
	HandleEvent(ctx context.Context, connID, event string, data json.RawMessage) (*HandleEventResponse, error)
	ListRooms(ctx context.Context) ([]domain.RoomSummary, error)
	ListUsers(ctx context.Context, roomID string) ([]domain.User, error)
	GetMessages(ctx context.Context, req *GetMessagesRequest) (*GetMessagesResponse, error)
	SearchMessages(ctx context.Context, roomID, query string) (*SearchResponse, error)
}
