package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store counts requests per key inside a fixed window. The first increment
// of a window starts its expiry clock.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisStore counts atomically in Redis so limits hold across instances.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed counter store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Incr increments the counter and sets the window expiry only if the key has
// none yet, in a single pipeline round-trip.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := s.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

type bucket struct {
	count   int64
	resetAt time.Time
}

// MemoryStore is a process-local counter map. It backs tests and serves as
// the fallback when the shared store is unreachable; limits then hold per
// instance only.
type MemoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewMemoryStore creates an in-process counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{buckets: make(map[string]*bucket), now: time.Now}
}

// Incr increments the counter, resetting it when the window has elapsed.
func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	b, ok := s.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(window)}
		s.buckets[key] = b
	}
	b.count++
	return b.count, nil
}
