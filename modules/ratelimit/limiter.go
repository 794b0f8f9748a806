// Package ratelimit limits how many inbound frames a connection may send.
package ratelimit

import (
	"context"
	"time"
)

// Config holds rate limiting configuration.
type Config struct {
	// Events is the maximum number of frames allowed in the window.
	Events int
	// Window is the duration of the window.
	Window time.Duration
}

// DefaultConfig allows 20 frames per second.
func DefaultConfig() Config {
	return Config{
		Events: 20,
		Window: time.Second,
	}
}

// Result represents the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter is the interface for rate limiting backends.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
	Close() error
}
