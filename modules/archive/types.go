package archive

import (
	"context"

	domain "github.com/example/realtime-chat/domain/chat"
)

// Service names registered by the archive module.
const (
	ServiceRecentMessages = "recent-messages"
	ServiceRoomMessages   = "room-messages"
)

// RecentMessagesRequest asks for the newest messages across all rooms.
type RecentMessagesRequest struct {
	Limit int `json:"limit,omitempty"`
}

// RoomMessagesRequest asks for the newest messages of one room.
type RoomMessagesRequest struct {
	RoomID string `json:"room_id"`
	Limit  int    `json:"limit,omitempty"`
}

// MessagesResponse holds archived messages.
type MessagesResponse struct {
	Messages []domain.Message `json:"messages"`
	Total    int              `json:"total"`
}

// ArchivePort defines the interface other modules use to read the archive.
type ArchivePort interface {
	RecentMessages(ctx context.Context, limit int) ([]domain.Message, error)
	RoomMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error)
}
