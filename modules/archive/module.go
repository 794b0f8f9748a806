package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module archives room messages into SQLite via GORM and serves them back.
type Module struct {
	db     *gorm.DB
	repo   *Repository
	dbPath string
	debug  bool
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the archive module backed by the SQLite file at dbPath.
func NewModule(dbPath string, debug bool) *Module {
	if dbPath == "" {
		dbPath = "chat.db"
	}
	return &Module{
		dbPath: dbPath,
		debug:  debug,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "archive"
}

// Health pings the database.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	details := map[string]any{
		"driver": "sqlite",
		"path":   m.dbPath,
	}
	if n, err := m.repo.Count(); err == nil {
		details["messages"] = n
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}

// RegisterServices registers the archive read services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRecentMessages, json.Unmarshal, json.Marshal, m.recentMessages,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRecentMessages, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRoomMessages, json.Unmarshal, json.Marshal, m.roomMessages,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRoomMessages, err)
	}

	log.Printf("[archive] Registered services: recent-messages, room-messages")
	return nil
}

// RegisterEventConsumers subscribes to stored chat messages.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageAppendedV1, m.handleMessageAppended, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageAppended consumer: %w", err)
	}

	log.Println("[archive] Registered event consumers: MessageAppended")
	return nil
}

// Start opens the database and runs migrations.
func (m *Module) Start(_ context.Context) error {
	log.Printf("[archive] Connecting to SQLite database: %s", m.dbPath)

	logLevel := logger.Silent
	if m.debug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := m.db.AutoMigrate(&ArchivedMessage{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	m.repo = NewRepository(m.db)

	log.Println("[archive] Module started successfully")
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	log.Println("[archive] Database connection closed")
	return nil
}

func (m *Module) handleMessageAppended(_ context.Context, event events.MessageAppendedEvent, _ *mono.Msg) error {
	if m.repo == nil {
		return fmt.Errorf("archive not started")
	}
	saved, err := m.repo.Save(&ArchivedMessage{
		MessageID:  event.MessageID,
		RoomID:     event.RoomID,
		SenderID:   event.SenderID,
		SenderName: event.SenderName,
		Body:       event.Body,
		Delivered:  event.Delivered,
		Timestamp:  event.Timestamp,
	})
	if err != nil {
		log.Printf("[archive] Failed to archive %s: %v", event.MessageID, err)
		return err
	}
	if !saved {
		log.Printf("[archive] Duplicate message %s ignored", event.MessageID)
	}
	return nil
}

func (m *Module) recentMessages(_ context.Context, req RecentMessagesRequest, _ *mono.Msg) (MessagesResponse, error) {
	rows, err := m.repo.FindRecent(req.Limit)
	if err != nil {
		return MessagesResponse{}, err
	}
	return toResponse(rows), nil
}

func (m *Module) roomMessages(_ context.Context, req RoomMessagesRequest, _ *mono.Msg) (MessagesResponse, error) {
	if req.RoomID == "" {
		return MessagesResponse{}, fmt.Errorf("room_id is required")
	}
	rows, err := m.repo.FindByRoom(req.RoomID, req.Limit)
	if err != nil {
		return MessagesResponse{}, err
	}
	return toResponse(rows), nil
}

func toResponse(rows []*ArchivedMessage) MessagesResponse {
	msgs := make([]domain.Message, 0, len(rows))
	for _, row := range rows {
		msgs = append(msgs, row.ToDomain())
	}
	return MessagesResponse{Messages: msgs, Total: len(msgs)}
}
