package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"seva-signup/core/logger"
)

// CounterStore increments a counter that expires with its window. A shared
// store (Redis) makes the limit hold across instances.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Limiter is a fixed-window rate limiter keyed by client identity. It is
// constructed once and injected where needed; there is no process-wide map.
type Limiter struct {
	store  CounterStore
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewLimiter(store CounterStore, limit int, window time.Duration) *Limiter {
	return &Limiter{store: store, limit: limit, window: window, now: time.Now}
}

// WithClock overrides the clock, for tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow reports whether the identity may proceed within the current window.
// Store failures allow the request through: throttling is protective, not
// load-bearing.
func (l *Limiter) Allow(ctx context.Context, identity string) bool {
	windowID := l.now().Unix() / int64(l.window.Seconds())
	key := fmt.Sprintf("ratelimit:%s:%d", identity, windowID)

	count, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		logger.Warn("Limiter:Allow:StoreUnavailable", "error", err, "identity", identity)
		return true
	}
	return count <= int64(l.limit)
}

// MemoryStore is an in-process CounterStore for tests and local development.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memCounter
	now      func() time.Time
}

type memCounter struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*memCounter), now: time.Now}
}

func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c, ok := s.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = &memCounter{expiresAt: now.Add(window)}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}
