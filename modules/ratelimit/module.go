package ratelimit

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces the Redis windows.
const keyPrefix = "chat:ratelimit:"

// Module provides per-connection frame limiting. With a Redis address it uses
// the shared sliding window, otherwise an in-process token bucket.
type Module struct {
	redisAddr string
	config    Config
	client    *redis.Client
	guard     *Guard
	backend   string
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the rate limiting module. The guard is usable at once
// with the local backend.
func NewModule(redisAddr string, config Config, logger *slog.Logger) *Module {
	return &Module{
		redisAddr: redisAddr,
		config:    config,
		guard:     NewGuard(NewLocalLimiter(config), logger),
		backend:   "local",
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "ratelimit"
}

// Start connects to Redis when configured. An unreachable Redis keeps the
// local backend.
func (m *Module) Start(ctx context.Context) error {
	if m.redisAddr == "" {
		log.Printf("[ratelimit] Module started (local token bucket, %d events per %s)", m.config.Events, m.config.Window)
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr: m.redisAddr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("[ratelimit] Redis at %s unavailable, using local limiter: %v", m.redisAddr, err)
		_ = client.Close()
		return nil
	}

	m.client = client
	m.guard.setLimiter(NewSlidingWindowLimiter(client, m.config, keyPrefix))
	m.backend = "redis"
	log.Printf("[ratelimit] Module started (redis sliding window at %s, %d events per %s)", m.redisAddr, m.config.Events, m.config.Window)
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			log.Printf("[ratelimit] Error closing Redis connection: %v", err)
		}
	}
	log.Println("[ratelimit] Module stopped")
	return nil
}

// GetGuard returns the guard the websocket handler consults.
func (m *Module) GetGuard() *Guard {
	return m.guard
}

// Health pings Redis when it is the active backend.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	details := map[string]any{
		"backend": m.backend,
		"events":  m.config.Events,
		"window":  m.config.Window.String(),
	}
	if m.client != nil {
		if err := m.client.Ping(ctx).Err(); err != nil {
			return mono.HealthStatus{
				Healthy: false,
				Message: fmt.Sprintf("redis ping failed: %v", err),
				Details: details,
			}
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}
