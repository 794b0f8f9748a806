package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"time"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/events"
	"github.com/example/realtime-chat/modules/archive"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// restoreLimit bounds how many archived messages are loaded at startup.
const restoreLimit = 1000

// ModuleOptions configures the chat module beyond the engine itself.
type ModuleOptions struct {
	SweepInterval time.Duration
	// UseArchive makes the module depend on the archive module and restore
	// history from it on start.
	UseArchive bool
}

// Module hosts the chat engine. Every engine call and the publishing of its
// effects happen under one lock so deliveries keep engine order.
type Module struct {
	engine   *Engine
	opts     ModuleOptions
	eventBus mono.EventBus
	archive  archive.ArchivePort
	logger   *slog.Logger

	pubMu  sync.Mutex
	stop   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the chat module with a fresh engine.
func NewModule(cfg Config, opts ModuleOptions, logger *slog.Logger) (*Module, error) {
	if logger == nil {
		logger = slog.Default()
	}
	engine, err := NewEngine(cfg, logger.With("module", "chat"))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat engine: %w", err)
	}
	m := &Module{
		engine: engine,
		opts:   opts,
		logger: logger,
		stop:   make(chan struct{}),
	}
	engine.OnMessageAppended(m.publishAppended)
	return m, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// Engine exposes the engine for in-process readers and tests.
func (m *Module) Engine() *Engine {
	return m.engine
}

// Dependencies declares the archive module when history restore is enabled.
func (m *Module) Dependencies() []string {
	if m.opts.UseArchive {
		return []string{"archive"}
	}
	return nil
}

// SetDependencyServiceContainer receives the archive module's container.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	if dependency == "archive" {
		m.archive = archive.NewArchiveAdapter(container)
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.DeliveryV1.ToBase(),
		events.MessageAppendedV1.ToBase(),
	}
}

// RegisterServices registers the chat request-reply services.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceConnect, json.Unmarshal, json.Marshal, m.connect,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceConnect, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceDisconnect, json.Unmarshal, json.Marshal, m.disconnect,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceDisconnect, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceHandleEvent, json.Unmarshal, json.Marshal, m.handleEvent,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceHandleEvent, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListRooms, json.Unmarshal, json.Marshal, m.listRooms,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListRooms, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceListUsers, json.Unmarshal, json.Marshal, m.listUsers,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListUsers, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceGetMessages, json.Unmarshal, json.Marshal, m.getMessages,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceGetMessages, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceSearchMessages, json.Unmarshal, json.Marshal, m.searchMessages,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSearchMessages, err)
	}

	log.Printf("[chat] Registered services: connect, disconnect, handle-event, list-rooms, list-users, get-messages, search-messages")
	return nil
}

// Start restores archived history and starts the typing sweeper.
func (m *Module) Start(ctx context.Context) error {
	if m.eventBus == nil {
		log.Println("[chat] Warning: eventBus not set, effects will not be delivered")
	}

	if m.opts.UseArchive {
		if m.archive == nil {
			return fmt.Errorf("archive dependency not set")
		}
		msgs, err := m.archive.RecentMessages(ctx, restoreLimit)
		if err != nil {
			return fmt.Errorf("failed to restore history: %w", err)
		}
		log.Printf("[chat] Restored %d archived messages", m.engine.Restore(msgs))
	}

	if m.engine.cfg.TypingTTL > 0 && m.opts.SweepInterval > 0 {
		m.wg.Add(1)
		go m.sweepLoop(m.opts.SweepInterval)
		log.Printf("[chat] Typing sweep every %s (ttl %s)", m.opts.SweepInterval, m.engine.cfg.TypingTTL)
	}

	log.Printf("[chat] Module started with %d rooms", len(m.engine.ListRooms()))
	return nil
}

// Stop stops the typing sweeper.
func (m *Module) Stop(_ context.Context) error {
	m.pubMu.Lock()
	if !m.closed {
		m.closed = true
		close(m.stop)
	}
	m.pubMu.Unlock()
	m.wg.Wait()

	log.Println("[chat] Module stopped")
	return nil
}

// Health reports engine sizes.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	stats := m.engine.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connections": stats.Connections,
			"identified":  stats.Identified,
			"rooms":       stats.Rooms,
		},
	}
}

func (m *Module) sweepLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.pubMu.Lock()
			m.publish(m.engine.SweepTyping(now))
			m.pubMu.Unlock()
		}
	}
}

// publish hands effects to the broadcast module. Callers hold pubMu.
func (m *Module) publish(effects []Effect) {
	if m.eventBus == nil {
		return
	}
	for _, effect := range effects {
		payload, err := json.Marshal(effect.Payload)
		if err != nil {
			m.logger.Error("Failed to encode effect", "event", effect.Event, "error", err)
			continue
		}
		event := events.DeliveryEvent{
			Scope:        string(effect.Scope),
			RoomID:       effect.RoomID,
			ConnectionID: effect.ConnectionID,
			Recipients:   effect.Recipients,
			Event:        effect.Event,
			Payload:      payload,
		}
		if err := events.DeliveryV1.Publish(m.eventBus, event, nil); err != nil {
			m.logger.Warn("Failed to publish Delivery event", "event", effect.Event, "error", err)
		}
	}
}

func (m *Module) publishAppended(msg domain.Message) {
	if m.eventBus == nil {
		return
	}
	event := events.MessageAppendedEvent{
		MessageID:  msg.ID,
		RoomID:     msg.RoomID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Body:       msg.Body,
		Delivered:  msg.Delivered,
		Timestamp:  msg.Timestamp,
	}
	if err := events.MessageAppendedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish MessageAppended event", "messageID", msg.ID, "error", err)
	}
}

func (m *Module) connect(_ context.Context, req ConnectRequest, _ *mono.Msg) (ConnectResponse, error) {
	if req.ConnectionID == "" {
		return ConnectResponse{}, fmt.Errorf("connection_id is required")
	}
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	user, effects := m.engine.Connect(req.ConnectionID)
	m.publish(effects)
	return ConnectResponse{User: user}, nil
}

func (m *Module) disconnect(_ context.Context, req DisconnectRequest, _ *mono.Msg) (DisconnectResponse, error) {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	effects := m.engine.Disconnect(req.ConnectionID)
	m.publish(effects)
	return DisconnectResponse{Effects: len(effects)}, nil
}

func (m *Module) handleEvent(_ context.Context, req HandleEventRequest, _ *mono.Msg) (HandleEventResponse, error) {
	m.pubMu.Lock()
	defer m.pubMu.Unlock()

	effects, err := m.engine.HandleEvent(req.ConnectionID, req.Event, req.Data)
	if err != nil {
		return HandleEventResponse{Rejected: errorClass(err)}, nil
	}
	m.publish(effects)
	return HandleEventResponse{Effects: len(effects)}, nil
}

func (m *Module) listRooms(_ context.Context, _ ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	rooms := m.engine.ListRooms()
	return ListRoomsResponse{Rooms: rooms, Total: len(rooms)}, nil
}

func (m *Module) listUsers(_ context.Context, req ListUsersRequest, _ *mono.Msg) (ListUsersResponse, error) {
	users := m.engine.ListUsers(req.RoomID)
	return ListUsersResponse{Users: users, Total: len(users)}, nil
}

func (m *Module) getMessages(_ context.Context, req GetMessagesRequest, _ *mono.Msg) (GetMessagesResponse, error) {
	page, err := m.engine.GetMessages(req.RoomID, req.Before, req.Limit)
	if err != nil {
		return GetMessagesResponse{Messages: page.Messages}, nil
	}
	return GetMessagesResponse{Found: true, Messages: page.Messages, HasMore: page.HasMore}, nil
}

func (m *Module) searchMessages(_ context.Context, req SearchRequest, _ *mono.Msg) (SearchResponse, error) {
	msgs, err := m.engine.SearchMessages(req.RoomID, req.Query)
	if err != nil {
		return SearchResponse{Messages: msgs}, nil
	}
	return SearchResponse{Found: true, Messages: msgs, Total: len(msgs)}, nil
}
