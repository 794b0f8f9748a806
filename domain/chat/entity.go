package chat

import "time"

// User represents a connected user. The ID is the connection id.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Avatar     string `json:"avatar,omitempty"`
	Online     bool   `json:"online"`
	ActiveRoom string `json:"activeRoom,omitempty"`
}

// Room represents a chat room and its current membership.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

// RoomSummary is the listing view of a room.
type RoomSummary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MemberCount int       `json:"memberCount"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Message is an immutable snapshot of a stored chat message.
type Message struct {
	ID         string              `json:"id"`
	RoomID     string              `json:"roomId"`
	SenderID   string              `json:"senderId"`
	SenderName string              `json:"sender"`
	Body       string              `json:"message"`
	Timestamp  time.Time           `json:"timestamp"`
	Delivered  bool                `json:"delivered"`
	Read       bool                `json:"read"`
	ReadBy     []string            `json:"readBy"`
	Reactions  map[string][]string `json:"reactions"`
}

// ReadByUser reports whether userID has marked the message as read.
func (m Message) ReadByUser(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Page is one page of room history, newest message first.
type Page struct {
	Messages []Message `json:"messages"`
	HasMore  bool      `json:"hasMore"`
}
