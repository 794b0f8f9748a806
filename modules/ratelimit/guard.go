package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// forgetter is implemented by backends that can drop per-key state.
type forgetter interface {
	Forget(key string)
}

// Guard is the stable handle the transport holds. The backend behind it can
// be swapped when the module starts. Backend errors let the frame through.
type Guard struct {
	mu      sync.RWMutex
	limiter Limiter
	logger  *slog.Logger
}

// NewGuard creates a guard over limiter.
func NewGuard(limiter Limiter, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{limiter: limiter, logger: logger}
}

func (g *Guard) setLimiter(limiter Limiter) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limiter = limiter
}

func (g *Guard) backend() Limiter {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.limiter
}

// Allow reports whether connID may send another frame, and if not, how long
// it should wait.
func (g *Guard) Allow(ctx context.Context, connID string) (bool, time.Duration) {
	limiter := g.backend()
	if limiter == nil {
		return true, 0
	}
	res, err := limiter.Allow(ctx, connID)
	if err != nil {
		g.logger.Warn("rate limiter failed, allowing frame", "conn", connID, "error", err)
		return true, 0
	}
	return res.Allowed, res.RetryAfter
}

// Forget drops per-connection state once a connection closes.
func (g *Guard) Forget(connID string) {
	if f, ok := g.backend().(forgetter); ok {
		f.Forget(connID)
	}
}
