package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/modules/broadcast"
	"github.com/example/realtime-chat/modules/chat"
)

// mockChatPort implements chat.ChatPort for testing
type mockChatPort struct {
	connectFunc     func(ctx context.Context, connID string) (domain.User, error)
	disconnectFunc  func(ctx context.Context, connID string) error
	handleEventFunc func(ctx context.Context, connID, event string, data json.RawMessage) (*chat.HandleEventResponse, error)
	listRoomsFunc   func(ctx context.Context) ([]domain.RoomSummary, error)
	listUsersFunc   func(ctx context.Context, roomID string) ([]domain.User, error)
	getMessagesFunc func(ctx context.Context, req *chat.GetMessagesRequest) (*chat.GetMessagesResponse, error)
	searchFunc      func(ctx context.Context, roomID, query string) (*chat.SearchResponse, error)
}

func (m *mockChatPort) Connect(ctx context.Context, connID string) (domain.User, error) {
	if m.connectFunc != nil {
		return m.connectFunc(ctx, connID)
	}
	return domain.User{ID: connID, Username: "User_test"}, nil
}

func (m *mockChatPort) Disconnect(ctx context.Context, connID string) error {
	if m.disconnectFunc != nil {
		return m.disconnectFunc(ctx, connID)
	}
	return nil
}

func (m *mockChatPort) HandleEvent(ctx context.Context, connID, event string, data json.RawMessage) (*chat.HandleEventResponse, error) {
	if m.handleEventFunc != nil {
		return m.handleEventFunc(ctx, connID, event, data)
	}
	return &chat.HandleEventResponse{}, nil
}

func (m *mockChatPort) ListRooms(ctx context.Context) ([]domain.RoomSummary, error) {
	if m.listRoomsFunc != nil {
		return m.listRoomsFunc(ctx)
	}
	return nil, errors.New("not implemented")
}

func (m *mockChatPort) ListUsers(ctx context.Context, roomID string) ([]domain.User, error) {
	if m.listUsersFunc != nil {
		return m.listUsersFunc(ctx, roomID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockChatPort) GetMessages(ctx context.Context, req *chat.GetMessagesRequest) (*chat.GetMessagesResponse, error) {
	if m.getMessagesFunc != nil {
		return m.getMessagesFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

func (m *mockChatPort) SearchMessages(ctx context.Context, roomID, query string) (*chat.SearchResponse, error) {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, roomID, query)
	}
	return nil, errors.New("not implemented")
}

// mockArchivePort implements archive.ArchivePort for testing
type mockArchivePort struct {
	roomID string
	limit  int
}

func (m *mockArchivePort) RecentMessages(_ context.Context, _ int) ([]domain.Message, error) {
	return nil, nil
}

func (m *mockArchivePort) RoomMessages(_ context.Context, roomID string, limit int) ([]domain.Message, error) {
	m.roomID, m.limit = roomID, limit
	return []domain.Message{{ID: "m1", RoomID: roomID, Body: "archived"}}, nil
}

func newTestModule(port *mockChatPort) *APIModule {
	m := NewModule(Options{}, nil)
	m.chatAdapter = port
	m.hub = broadcast.NewHub()
	return m
}

func doGet(t *testing.T, m *APIModule, target string) (int, string) {
	t.Helper()
	app := m.newApp()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil))
	if err != nil {
		t.Fatalf("app.Test(%s) error: %v", target, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestAPI_GetMessages(t *testing.T) {
	var got *chat.GetMessagesRequest
	port := &mockChatPort{
		getMessagesFunc: func(_ context.Context, req *chat.GetMessagesRequest) (*chat.GetMessagesResponse, error) {
			got = req
			if req.RoomID == "missing" {
				return &chat.GetMessagesResponse{}, nil
			}
			if req.RoomID == "broken" {
				return nil, errors.New("bus down")
			}
			return &chat.GetMessagesResponse{
				Found:    true,
				Messages: []domain.Message{{ID: "m2", RoomID: req.RoomID}},
				HasMore:  true,
			}, nil
		},
	}
	m := newTestModule(port)

	tests := []struct {
		name           string
		target         string
		expectedStatus int
		expectedBody   string
	}{
		{"page", "/api/messages/general?before=m3&limit=1", http.StatusOK, `"hasMore":true`},
		{"unknown room", "/api/messages/missing", http.StatusNotFound, `"not_found"`},
		{"negative limit", "/api/messages/general?limit=-1", http.StatusBadRequest, `"validation_error"`},
		{"service failure", "/api/messages/broken", http.StatusInternalServerError, `"history_failed"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doGet(t, m, tt.target)
			if status != tt.expectedStatus {
				t.Errorf("status = %d, want %d (body %s)", status, tt.expectedStatus, body)
			}
			if !strings.Contains(body, tt.expectedBody) {
				t.Errorf("body = %s, want it to contain %s", body, tt.expectedBody)
			}
		})
	}

	doGet(t, m, "/api/messages/general?before=m3&limit=1")
	if got == nil || got.Before != "m3" || got.Limit != 1 {
		t.Errorf("request = %+v, want before=m3 limit=1", got)
	}
}

func TestAPI_SearchMessages(t *testing.T) {
	port := &mockChatPort{
		searchFunc: func(_ context.Context, roomID, query string) (*chat.SearchResponse, error) {
			if roomID != "general" {
				return &chat.SearchResponse{}, nil
			}
			return &chat.SearchResponse{
				Found:    true,
				Messages: []domain.Message{{ID: "m1", Body: "hello " + query}},
				Total:    1,
			}, nil
		},
	}
	m := newTestModule(port)

	status, body := doGet(t, m, "/api/messages/general/search?q=world")
	if status != http.StatusOK || !strings.Contains(body, `"total":1`) {
		t.Errorf("search = %d %s", status, body)
	}

	status, _ = doGet(t, m, "/api/messages/general/search")
	if status != http.StatusBadRequest {
		t.Errorf("missing q status = %d, want 400", status)
	}

	status, _ = doGet(t, m, "/api/messages/other/search?q=x")
	if status != http.StatusNotFound {
		t.Errorf("unknown room status = %d, want 404", status)
	}
}

func TestAPI_ListRoomsAndUsers(t *testing.T) {
	var usersRoom string
	port := &mockChatPort{
		listRoomsFunc: func(context.Context) ([]domain.RoomSummary, error) {
			return []domain.RoomSummary{{ID: "general", Name: "General", MemberCount: 2}}, nil
		},
		listUsersFunc: func(_ context.Context, roomID string) ([]domain.User, error) {
			usersRoom = roomID
			return nil, nil
		},
	}
	m := newTestModule(port)

	status, body := doGet(t, m, "/api/rooms")
	if status != http.StatusOK {
		t.Fatalf("rooms status = %d", status)
	}
	var rooms RoomListResponse
	if err := json.Unmarshal([]byte(body), &rooms); err != nil {
		t.Fatalf("rooms body: %v", err)
	}
	if rooms.Total != 1 || rooms.Rooms[0].MemberCount != 2 {
		t.Errorf("rooms = %+v", rooms)
	}

	status, body = doGet(t, m, "/api/users?roomId=general")
	if status != http.StatusOK {
		t.Fatalf("users status = %d", status)
	}
	if usersRoom != "general" {
		t.Errorf("users room = %q, want general", usersRoom)
	}
	if !strings.Contains(body, `"users":[]`) {
		t.Errorf("empty user list should encode as [], got %s", body)
	}
}

func TestAPI_Archive(t *testing.T) {
	m := newTestModule(&mockChatPort{})

	status, body := doGet(t, m, "/api/archive/general")
	if status != http.StatusServiceUnavailable || !strings.Contains(body, "archive_disabled") {
		t.Errorf("disabled archive = %d %s", status, body)
	}

	store := &mockArchivePort{}
	m.archive = store

	status, body = doGet(t, m, "/api/archive/general?limit=10")
	if status != http.StatusOK || !strings.Contains(body, `"archived"`) {
		t.Errorf("archive = %d %s", status, body)
	}
	if store.roomID != "general" || store.limit != 10 {
		t.Errorf("archive called with %q/%d", store.roomID, store.limit)
	}

	status, _ = doGet(t, m, "/api/archive/general?limit=5000")
	if status != http.StatusBadRequest {
		t.Errorf("oversized limit status = %d, want 400", status)
	}
}

func TestAPI_HealthAndUpgrade(t *testing.T) {
	m := newTestModule(&mockChatPort{})

	status, body := doGet(t, m, "/health")
	if status != http.StatusOK || !strings.Contains(body, `"healthy"`) {
		t.Errorf("health = %d %s", status, body)
	}

	status, _ = doGet(t, m, "/ws")
	if status != http.StatusUpgradeRequired {
		t.Errorf("plain GET /ws status = %d, want 426", status)
	}
}

func TestAPI_Dependencies(t *testing.T) {
	if deps := NewModule(Options{}, nil).Dependencies(); len(deps) != 1 || deps[0] != "chat" {
		t.Errorf("Dependencies() = %v, want [chat]", deps)
	}
	if deps := NewModule(Options{UseArchive: true}, nil).Dependencies(); len(deps) != 2 || deps[1] != "archive" {
		t.Errorf("Dependencies() = %v, want [chat archive]", deps)
	}
}
