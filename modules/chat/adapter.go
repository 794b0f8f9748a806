package chat

import (
	"context"
	"encoding/json"
	"fmt"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// chatAdapter implements ChatPort over the chat module's request/reply services.
type chatAdapter struct {
	container mono.ServiceContainer
}

// NewChatAdapter creates a ChatPort backed by container, which is the chat
// module's ServiceContainer received via SetDependencyServiceContainer.
func NewChatAdapter(container mono.ServiceContainer) ChatPort {
	if container == nil {
		panic("chat adapter requires non-nil ServiceContainer")
	}
	return &chatAdapter{container: container}
}

// Connect opens a session for connID.
func (a *chatAdapter) Connect(ctx context.Context, connID string) (domain.User, error) {
	req := ConnectRequest{ConnectionID: connID}
	var resp ConnectResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceConnect,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return domain.User{}, fmt.Errorf("connect service call failed: %w", err)
	}
	return resp.User, nil
}

// Disconnect closes the session of connID.
func (a *chatAdapter) Disconnect(ctx context.Context, connID string) error {
	req := DisconnectRequest{ConnectionID: connID}
	var resp DisconnectResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceDisconnect,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return fmt.Errorf("disconnect service call failed: %w", err)
	}
	return nil
}

// HandleEvent forwards one inbound frame.
func (a *chatAdapter) HandleEvent(ctx context.Context, connID, event string, data json.RawMessage) (*HandleEventResponse, error) {
	req := HandleEventRequest{ConnectionID: connID, Event: event, Data: data}
	var resp HandleEventResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceHandleEvent,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("handle-event service call failed: %w", err)
	}
	return &resp, nil
}

// ListRooms returns every room summary.
func (a *chatAdapter) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	req := ListRoomsRequest{}
	var resp ListRoomsResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListRooms,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("list-rooms service call failed: %w", err)
	}
	return resp.Rooms, nil
}

// ListUsers returns online users, optionally only members of roomID.
func (a *chatAdapter) ListUsers(ctx context.Context, roomID string) ([]domain.User, error) {
	req := ListUsersRequest{RoomID: roomID}
	var resp ListUsersResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceListUsers,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("list-users service call failed: %w", err)
	}
	return resp.Users, nil
}

// GetMessages returns one page of room history.
func (a *chatAdapter) GetMessages(ctx context.Context, req *GetMessagesRequest) (*GetMessagesResponse, error) {
	var resp GetMessagesResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceGetMessages,
		json.Marshal,
		json.Unmarshal,
		req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("get-messages service call failed: %w", err)
	}
	return &resp, nil
}

// SearchMessages searches a room's history.
func (a *chatAdapter) SearchMessages(ctx context.Context, roomID, query string) (*SearchResponse, error) {
	req := SearchRequest{RoomID: roomID, Query: query}
	var resp SearchResponse
	if err := helper.CallRequestReplyService(
		ctx,
		a.container,
		ServiceSearchMessages,
		json.Marshal,
		json.Unmarshal,
		&req,
		&resp,
	); err != nil {
		return nil, fmt.Errorf("search-messages service call failed: %w", err)
	}
	return &resp, nil
}
