package api

import (
	"log"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/modules/archive"
	"github.com/example/realtime-chat/modules/chat"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

const maxArchiveLimit = 1000

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	// Health check
	app.Get("/health", m.healthHandler)

	// WebSocket endpoint
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(m.handleWebSocket))

	// Read-only projections of the chat state
	api := app.Group("/api")
	api.Get("/rooms", m.listRooms)
	api.Get("/users", m.listUsers)
	api.Get("/messages/:roomId", m.getMessages)
	api.Get("/messages/:roomId/search", m.searchMessages)
	api.Get("/archive/:roomId", m.getArchive)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":            "api",
			"connected_clients": m.hub.ClientCount(),
		},
	})
}

// listRooms handles GET /api/rooms.
func (m *APIModule) listRooms(c *fiber.Ctx) error {
	rooms, err := m.chatAdapter.ListRooms(c.UserContext())
	if err != nil {
		log.Printf("[api] list rooms: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list rooms",
		})
	}
	if rooms == nil {
		rooms = []domain.RoomSummary{}
	}
	return c.JSON(RoomListResponse{Rooms: rooms, Total: len(rooms)})
}

// listUsers handles GET /api/users?roomId=.
func (m *APIModule) listUsers(c *fiber.Ctx) error {
	roomID := c.Query("roomId")
	users, err := m.chatAdapter.ListUsers(c.UserContext(), roomID)
	if err != nil {
		log.Printf("[api] list users: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list users",
		})
	}
	if users == nil {
		users = []domain.User{}
	}
	return c.JSON(UserListResponse{RoomID: roomID, Users: users, Total: len(users)})
}

// getMessages handles GET /api/messages/:roomId?before=&limit=.
func (m *APIModule) getMessages(c *fiber.Ctx) error {
	roomID := c.Params("roomId")
	limit := c.QueryInt("limit", 0)
	if limit < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "limit must not be negative",
		})
	}

	resp, err := m.chatAdapter.GetMessages(c.UserContext(), &chat.GetMessagesRequest{
		RoomID: roomID,
		Before: c.Query("before"),
		Limit:  limit,
	})
	if err != nil {
		log.Printf("[api] get messages: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "history_failed",
			Message: "Failed to load messages",
		})
	}
	if !resp.Found {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Room not found",
		})
	}

	messages := resp.Messages
	if messages == nil {
		messages = []domain.Message{}
	}
	return c.JSON(MessagesResponse{RoomID: roomID, Messages: messages, HasMore: resp.HasMore})
}

// searchMessages handles GET /api/messages/:roomId/search?q=.
func (m *APIModule) searchMessages(c *fiber.Ctx) error {
	roomID := c.Params("roomId")
	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "Query parameter q is required",
		})
	}

	resp, err := m.chatAdapter.SearchMessages(c.UserContext(), roomID, query)
	if err != nil {
		log.Printf("[api] search messages: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "search_failed",
			Message: "Failed to search messages",
		})
	}
	if !resp.Found {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Room not found",
		})
	}

	messages := resp.Messages
	if messages == nil {
		messages = []domain.Message{}
	}
	return c.JSON(SearchResponse{RoomID: roomID, Query: query, Messages: messages, Total: len(messages)})
}

// getArchive handles GET /api/archive/:roomId?limit=.
func (m *APIModule) getArchive(c *fiber.Ctx) error {
	if m.archive == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			Error:   "archive_disabled",
			Message: "Message archive is not enabled",
		})
	}

	limit := c.QueryInt("limit", archive.DefaultLimit)
	if limit <= 0 || limit > maxArchiveLimit {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "validation_error",
			Message: "limit must be between 1 and 1000",
		})
	}

	roomID := c.Params("roomId")
	messages, err := m.archive.RoomMessages(c.UserContext(), roomID, limit)
	if err != nil {
		log.Printf("[api] archive lookup: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "archive_failed",
			Message: "Failed to read archive",
		})
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return c.JSON(ArchiveResponse{RoomID: roomID, Messages: messages, Total: len(messages)})
}
