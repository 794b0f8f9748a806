package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter is an in-process token bucket per key.
type LocalLimiter struct {
	mu      sync.Mutex
	config  Config
	buckets map[string]*rate.Limiter
	now     func() time.Time
}

// NewLocalLimiter creates a token bucket limiter that refills config.Events
// tokens per config.Window.
func NewLocalLimiter(config Config) *LocalLimiter {
	if config.Events <= 0 || config.Window <= 0 {
		config = DefaultConfig()
	}
	return &LocalLimiter{
		config:  config,
		buckets: make(map[string]*rate.Limiter),
		now:     time.Now,
	}
}

func (l *LocalLimiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = rate.NewLimiter(l.limit(), l.config.Events)
		l.buckets[key] = b
	}
	return b
}

// limit is the refill rate in tokens per second.
func (l *LocalLimiter) limit() rate.Limit {
	return rate.Limit(float64(l.config.Events) / l.config.Window.Seconds())
}

// Allow takes one token for key.
func (l *LocalLimiter) Allow(_ context.Context, key string) (*Result, error) {
	now := l.now()
	b := l.bucket(key)

	r := b.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return &Result{Allowed: false, RetryAfter: delay}, nil
	}
	remaining := int(b.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return &Result{Allowed: true, Remaining: remaining}, nil
}

// Forget drops the bucket of key.
func (l *LocalLimiter) Forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Close releases nothing; buckets are garbage collected with the limiter.
func (l *LocalLimiter) Close() error {
	return nil
}
