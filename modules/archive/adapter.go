package archive

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// archiveAdapter implements ArchivePort over the archive module's services.
type archiveAdapter struct {
	container mono.ServiceContainer
}

// NewArchiveAdapter creates an ArchivePort from the archive module's container.
func NewArchiveAdapter(container mono.ServiceContainer) ArchivePort {
	if container == nil {
		panic("archive adapter requires non-nil ServiceContainer")
	}
	return &archiveAdapter{container: container}
}

// RecentMessages returns the newest messages across rooms, oldest first.
func (a *archiveAdapter) RecentMessages(ctx context.Context, limit int) ([]domain.Message, error) {
	req := RecentMessagesRequest{Limit: limit}
	var resp MessagesResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceRecentMessages,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("recent-messages service call failed: %w", err)
	}
	return resp.Messages, nil
}

// RoomMessages returns the newest messages of a room, newest first.
func (a *archiveAdapter) RoomMessages(ctx context.Context, roomID string, limit int) ([]domain.Message, error) {
	req := RoomMessagesRequest{RoomID: roomID, Limit: limit}
	var resp MessagesResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceRoomMessages,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("room-messages service call failed: %w", err)
	}
	return resp.Messages, nil
}
