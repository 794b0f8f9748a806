package broadcast

import (
	"context"
	"fmt"
	"log"

	"github.com/example/realtime-chat/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// scopeAll matches the chat engine's broadcast-to-everyone scope.
const scopeAll = "all"

// BroadcastModule consumes chat deliveries and writes them to websocket clients.
type BroadcastModule struct {
	hub       *Hub
	cancelHub context.CancelFunc
}

// Compile-time interface checks.
var _ mono.Module = (*BroadcastModule)(nil)
var _ mono.EventConsumerModule = (*BroadcastModule)(nil)
var _ mono.HealthCheckableModule = (*BroadcastModule)(nil)

// NewModule creates a new BroadcastModule.
func NewModule() *BroadcastModule {
	return &BroadcastModule{
		hub: NewHub(),
	}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return "broadcast"
}

// Start starts the hub.
func (m *BroadcastModule) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	log.Println("[broadcast] Module started - WebSocket hub running")
	return nil
}

// Stop shuts down the hub and closes every connection.
func (m *BroadcastModule) Stop(_ context.Context) error {
	clientCount := m.hub.ClientCount()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	log.Printf("[broadcast] Module stopped - %d clients were connected", clientCount)
	return nil
}

// Health returns the health status.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	sent, dropped := m.hub.Stats()
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
			"frames_sent":       sent,
			"frames_dropped":    dropped,
		},
	}
}

// RegisterEventConsumers subscribes to chat deliveries.
func (m *BroadcastModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.DeliveryV1, m.handleDelivery, m,
	); err != nil {
		return fmt.Errorf("failed to register Delivery consumer: %w", err)
	}

	log.Println("[broadcast] Registered event consumers: Delivery")
	return nil
}

func (m *BroadcastModule) handleDelivery(_ context.Context, event events.DeliveryEvent, _ *mono.Msg) error {
	recipients := event.Recipients
	if recipients == nil && event.Scope != scopeAll {
		recipients = []string{}
	}
	if err := m.hub.Deliver(recipients, event.Event, event.Payload); err != nil {
		log.Printf("[broadcast] Dropping %s: %v", event.Event, err)
	}
	return nil
}

// GetHub returns the WebSocket hub for the API module to use.
func (m *BroadcastModule) GetHub() *Hub {
	return m.hub
}
