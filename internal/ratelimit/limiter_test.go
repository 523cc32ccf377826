package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreCountsWithinWindow(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }

	for i := int64(1); i <= 3; i++ {
		n, err := s.Incr(context.Background(), "signup:1.2.3.4", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	// a fresh window resets the counter
	now = now.Add(time.Minute)
	n, err := s.Incr(context.Background(), "signup:1.2.3.4", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Incr(context.Background(), "signup:a", time.Minute)
	require.NoError(t, err)
	n, err := s.Incr(context.Background(), "cancel:a", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestLimiterRejectsOverMax(t *testing.T) {
	l := New(NewMemoryStore(), nil)
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "signup", "1.2.3.4", time.Minute, 2))
	assert.True(t, l.Allow(ctx, "signup", "1.2.3.4", time.Minute, 2))
	assert.False(t, l.Allow(ctx, "signup", "1.2.3.4", time.Minute, 2))

	// other clients are unaffected
	assert.True(t, l.Allow(ctx, "signup", "5.6.7.8", time.Minute, 2))
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, error) {
	return 0, errors.New("connection refused")
}

func TestLimiterFailsOpenToLocalCounters(t *testing.T) {
	// when the shared store is down the limiter degrades to per-instance
	// counting instead of blocking traffic
	l := New(failingStore{}, nil)
	ctx := context.Background()

	assert.True(t, l.Allow(ctx, "signup", "1.2.3.4", time.Minute, 1))
	assert.False(t, l.Allow(ctx, "signup", "1.2.3.4", time.Minute, 1))
}

func TestClientID(t *testing.T) {
	assert.Equal(t, "203.0.113.9", ClientID("203.0.113.9, 10.0.0.1", "10.0.0.2:4711"))
	assert.Equal(t, "10.0.0.2", ClientID("", "10.0.0.2:4711"))
	assert.Equal(t, "10.0.0.3", ClientID("  ", "10.0.0.3:80"))
	assert.Equal(t, "unknown", ClientID("", ""))
}
