package api

import (
	domain "github.com/example/realtime-chat/domain/chat"
)

// RoomListResponse is the API response for listing rooms.
type RoomListResponse struct {
	Rooms []domain.RoomSummary `json:"rooms"`
	Total int                  `json:"total"`
}

// UserListResponse is the API response for listing online users.
type UserListResponse struct {
	RoomID string        `json:"roomId,omitempty"`
	Users  []domain.User `json:"users"`
	Total  int           `json:"total"`
}

// MessagesResponse is one page of room history, newest first.
type MessagesResponse struct {
	RoomID   string           `json:"roomId"`
	Messages []domain.Message `json:"messages"`
	HasMore  bool             `json:"hasMore"`
}

// SearchResponse holds the messages of a room matching a query.
type SearchResponse struct {
	RoomID   string           `json:"roomId"`
	Query    string           `json:"query"`
	Messages []domain.Message `json:"messages"`
	Total    int              `json:"total"`
}

// ArchiveResponse holds archived messages of a room, newest first.
type ArchiveResponse struct {
	RoomID   string           `json:"roomId"`
	Messages []domain.Message `json:"messages"`
	Total    int              `json:"total"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
