package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domain "github.com/example/realtime-chat/domain/chat"
)

// Inbound event names.
const (
	EventUserJoin          = "user_join"
	EventJoinRoom          = "join_room"
	EventCreateRoom        = "create_room"
	EventLeaveRoom         = "leave_room"
	EventViewRoom          = "view_room"
	EventSendMessage       = "send_message"
	EventTyping            = "typing"
	EventPrivateMessage    = "private_message"
	EventAddReaction       = "add_reaction"
	EventMarkRead          = "mark_read"
	EventSearchMessages    = "search_messages"
	EventLoadOlderMessages = "load_older_messages"
	EventGetUnreadCounts   = "get_unread_counts"
)

// Outbound event names.
const (
	OutConnected         = "connected"
	OutUserProfile       = "user_profile"
	OutUserOnline        = "user_online"
	OutUserOffline       = "user_offline"
	OutRoomList          = "room_list"
	OutRoomCreated       = "room_created"
	OutRoomJoined        = "room_joined"
	OutUserJoinedRoom    = "user_joined_room"
	OutUserLeftRoom      = "user_left_room"
	OutUserLeft          = "user_left"
	OutReceiveMessage    = "receive_message"
	OutTypingUsers       = "typing_users"
	OutPrivateMessage    = "private_message"
	OutAddReaction       = "add_reaction"
	OutMessagesRead      = "messages_read"
	OutUnreadCountUpdate = "unread_count_update"
	OutSearchResults     = "search_results"
	OutOlderMessages     = "older_messages"
	OutError             = "error"
)

// Request is a decoded, typed inbound event.
type Request interface {
	EventName() string
	Validate() error
}

// UserJoinRequest identifies the connection. Both fields are optional.
type UserJoinRequest struct {
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

func (UserJoinRequest) EventName() string { return EventUserJoin }
func (UserJoinRequest) Validate() error   { return nil }

// JoinRoomRequest adds the user to a room.
type JoinRoomRequest struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
}

func (JoinRoomRequest) EventName() string { return EventJoinRoom }
func (r JoinRoomRequest) Validate() error { return requireField("roomId", r.RoomID) }

// CreateRoomRequest creates a room and joins it.
type CreateRoomRequest struct {
	RoomID   string `json:"roomId"`
	RoomName string `json:"roomName"`
}

func (CreateRoomRequest) EventName() string { return EventCreateRoom }
func (r CreateRoomRequest) Validate() error { return requireField("roomId", r.RoomID) }

// LeaveRoomRequest removes the user from a room.
type LeaveRoomRequest struct {
	RoomID string `json:"roomId"`
}

func (LeaveRoomRequest) EventName() string { return EventLeaveRoom }
func (r LeaveRoomRequest) Validate() error { return requireField("roomId", r.RoomID) }

// ViewRoomRequest sets the room the user is looking at. An empty id clears it.
type ViewRoomRequest struct {
	RoomID string `json:"roomId"`
}

func (ViewRoomRequest) EventName() string { return EventViewRoom }
func (ViewRoomRequest) Validate() error   { return nil }

// SendMessageRequest posts a message to a room.
type SendMessageRequest struct {
	Message string `json:"message"`
	RoomID  string `json:"roomId"`
}

func (SendMessageRequest) EventName() string { return EventSendMessage }
func (r SendMessageRequest) Validate() error { return requireField("roomId", r.RoomID) }

// TypingRequest toggles the typing indicator.
type TypingRequest struct {
	RoomID   string `json:"roomId"`
	IsTyping *bool  `json:"isTyping"`
}

func (TypingRequest) EventName() string { return EventTyping }
func (r TypingRequest) Validate() error {
	if err := requireField("roomId", r.RoomID); err != nil {
		return err
	}
	if r.IsTyping == nil {
		return fmt.Errorf("%w: isTyping is required", ErrMalformedPayload)
	}
	return nil
}

// PrivateMessageRequest sends a message to a single connection.
type PrivateMessageRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (PrivateMessageRequest) EventName() string { return EventPrivateMessage }
func (r PrivateMessageRequest) Validate() error { return requireField("to", r.To) }

// AddReactionRequest reacts to a message.
type AddReactionRequest struct {
	MessageID string `json:"messageId"`
	Reaction  string `json:"reaction"`
	RoomID    string `json:"roomId"`
}

func (AddReactionRequest) EventName() string { return EventAddReaction }
func (r AddReactionRequest) Validate() error {
	if err := requireField("messageId", r.MessageID); err != nil {
		return err
	}
	if err := requireField("reaction", r.Reaction); err != nil {
		return err
	}
	return requireField("roomId", r.RoomID)
}

// MarkReadRequest acknowledges messages in a room.
type MarkReadRequest struct {
	MessageIDs []string `json:"messageIds"`
	RoomID     string   `json:"roomId"`
}

func (MarkReadRequest) EventName() string { return EventMarkRead }

// Validate requires messageIds to be present. An explicit empty list resets
// the unread counter without marking any message.
func (r MarkReadRequest) Validate() error {
	if err := requireField("roomId", r.RoomID); err != nil {
		return err
	}
	if r.MessageIDs == nil {
		return fmt.Errorf("%w: messageIds is required", ErrMalformedPayload)
	}
	return nil
}

// SearchMessagesRequest searches a room's history.
type SearchMessagesRequest struct {
	Query  string `json:"query"`
	RoomID string `json:"roomId"`
}

func (SearchMessagesRequest) EventName() string { return EventSearchMessages }
func (r SearchMessagesRequest) Validate() error { return requireField("roomId", r.RoomID) }

// LoadOlderMessagesRequest pages back through a room's history.
type LoadOlderMessagesRequest struct {
	RoomID          string `json:"roomId"`
	BeforeMessageID string `json:"beforeMessageId"`
	Limit           int    `json:"limit"`
}

func (LoadOlderMessagesRequest) EventName() string { return EventLoadOlderMessages }
func (r LoadOlderMessagesRequest) Validate() error {
	if err := requireField("roomId", r.RoomID); err != nil {
		return err
	}
	if r.Limit < 0 {
		return fmt.Errorf("%w: limit must not be negative", ErrMalformedPayload)
	}
	return nil
}

// GetUnreadCountsRequest asks for the caller's unread counters.
type GetUnreadCountsRequest struct{}

func (GetUnreadCountsRequest) EventName() string { return EventGetUnreadCounts }
func (GetUnreadCountsRequest) Validate() error   { return nil }

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrMalformedPayload, name)
	}
	return nil
}

var requestFactories = map[string]func() Request{
	EventUserJoin:          func() Request { return &UserJoinRequest{} },
	EventJoinRoom:          func() Request { return &JoinRoomRequest{} },
	EventCreateRoom:        func() Request { return &CreateRoomRequest{} },
	EventLeaveRoom:         func() Request { return &LeaveRoomRequest{} },
	EventViewRoom:          func() Request { return &ViewRoomRequest{} },
	EventSendMessage:       func() Request { return &SendMessageRequest{} },
	EventTyping:            func() Request { return &TypingRequest{} },
	EventPrivateMessage:    func() Request { return &PrivateMessageRequest{} },
	EventAddReaction:       func() Request { return &AddReactionRequest{} },
	EventMarkRead:          func() Request { return &MarkReadRequest{} },
	EventSearchMessages:    func() Request { return &SearchMessagesRequest{} },
	EventLoadOlderMessages: func() Request { return &LoadOlderMessagesRequest{} },
	EventGetUnreadCounts:   func() Request { return &GetUnreadCountsRequest{} },
}

// DecodeRequest parses and validates the payload of an inbound event. A
// missing or null payload is malformed except for get_unread_counts.
func DecodeRequest(event string, raw json.RawMessage) (Request, error) {
	factory, ok := requestFactories[event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	req := factory()

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		if event == EventGetUnreadCounts {
			return req, nil
		}
		return nil, fmt.Errorf("%w: %s payload is empty", ErrMalformedPayload, event)
	}
	if trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: %s payload must be an object", ErrMalformedPayload, event)
	}
	if err := json.Unmarshal(trimmed, req); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, event, err)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// ConnectedPayload greets a new connection.
type ConnectedPayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// UserPayload carries one user.
type UserPayload struct {
	User domain.User `json:"user"`
}

// UserOfflinePayload announces a closed connection.
type UserOfflinePayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// RoomListPayload lists every room.
type RoomListPayload struct {
	Rooms []domain.RoomSummary `json:"rooms"`
}

// RoomCreatedPayload announces a new room.
type RoomCreatedPayload struct {
	Room domain.RoomSummary `json:"room"`
}

// RoomJoinedPayload is sent to a user that joined a room.
type RoomJoinedPayload struct {
	RoomID   string           `json:"roomId"`
	RoomName string           `json:"roomName"`
	Members  []domain.User    `json:"members"`
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"hasMore"`
}

// RoomUserPayload announces a membership change.
type RoomUserPayload struct {
	RoomID string      `json:"roomId"`
	User   domain.User `json:"user"`
}

// UserLeftPayload is the presence-left notice sent on disconnect.
type UserLeftPayload struct {
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// TypingUsersPayload is the current typing set of a room, by username.
type TypingUsersPayload struct {
	RoomID string   `json:"roomId"`
	Users  []string `json:"users"`
}

// PrivateMessagePayload is delivered to the recipient of a private message.
type PrivateMessagePayload struct {
	ID        string    `json:"id"`
	To        string    `json:"to"`
	From      string    `json:"from"`
	Sender    string    `json:"sender"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	IsPrivate bool      `json:"isPrivate"`
}

// ReactionPayload is broadcast after a reaction is recorded.
type ReactionPayload struct {
	MessageID string              `json:"messageId"`
	RoomID    string              `json:"roomId"`
	Reaction  string              `json:"reaction"`
	UserID    string              `json:"userId"`
	Reactions map[string][]string `json:"reactions"`
}

// MessagesReadPayload is broadcast after a user marks messages read.
type MessagesReadPayload struct {
	RoomID     string   `json:"roomId"`
	UserID     string   `json:"userId"`
	MessageIDs []string `json:"messageIds"`
}

// UnreadCountPayload is the unread count of the recipient in one room.
type UnreadCountPayload struct {
	RoomID string `json:"roomId"`
	Count  int    `json:"count"`
}

// SearchResultsPayload answers search_messages.
type SearchResultsPayload struct {
	RoomID   string           `json:"roomId"`
	Query    string           `json:"query"`
	Messages []domain.Message `json:"messages"`
}

// OlderMessagesPayload answers load_older_messages, newest message first.
type OlderMessagesPayload struct {
	RoomID   string           `json:"roomId"`
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"hasMore"`
}

// ErrorPayload reports a rejected frame to its sender.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
