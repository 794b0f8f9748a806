package archive

import (
	"time"

	domain "github.com/example/realtime-chat/domain/chat"
)

// ArchivedMessage is the persisted form of a room message. Seq preserves
// arrival order across rooms.
type ArchivedMessage struct {
	Seq        uint64    `gorm:"primarykey;autoIncrement" json:"seq"`
	MessageID  string    `gorm:"size:64;not null;uniqueIndex" json:"message_id"`
	RoomID     string    `gorm:"size:100;not null;index" json:"room_id"`
	SenderID   string    `gorm:"size:64;not null" json:"sender_id"`
	SenderName string    `gorm:"size:100" json:"sender_name"`
	Body       string    `gorm:"type:text;not null" json:"body"`
	Delivered  bool      `gorm:"not null;default:false" json:"delivered"`
	Timestamp  time.Time `gorm:"not null;index" json:"timestamp"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the table name for ArchivedMessage.
func (ArchivedMessage) TableName() string {
	return "messages"
}

// ToDomain converts the row back to a message snapshot.
func (a ArchivedMessage) ToDomain() domain.Message {
	return domain.Message{
		ID:         a.MessageID,
		RoomID:     a.RoomID,
		SenderID:   a.SenderID,
		SenderName: a.SenderName,
		Body:       a.Body,
		Timestamp:  a.Timestamp,
		Delivered:  a.Delivered,
		ReadBy:     []string{},
		Reactions:  map[string][]string{},
	}
}
