// Package ratelimit throttles requests per action and client, backed by a
// shared counter store with a process-local fallback.
package ratelimit

import (
	"context"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Limiter gates requests against a counter store. When the primary store
// errors, it fails open to per-instance in-memory counting: availability is
// favored over strict cross-instance limits, and every degradation is
// logged.
type Limiter struct {
	store    Store
	fallback *MemoryStore
	logger   *zap.Logger
}

// New creates a limiter over the given primary store.
func New(store Store, logger *zap.Logger) *Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Limiter{store: store, fallback: NewMemoryStore(), logger: logger}
}

// Allow reports whether the client may perform the action now. It increments
// the (action, client) counter and rejects once the count exceeds max within
// the open window.
func (l *Limiter) Allow(ctx context.Context, action, clientID string, window time.Duration, max int) bool {
	key := action + ":" + clientID
	count, err := l.store.Incr(ctx, key, window)
	if err != nil {
		l.logger.Warn("rate limit store unavailable, degrading to local counters",
			zap.Error(err), zap.String("action", action))
		count, err = l.fallback.Incr(ctx, key, window)
		if err != nil {
			return true
		}
	}
	return count <= int64(max)
}

// ClientID derives the client identity for rate limiting: the first
// forwarded address, then the direct peer address, then "unknown". All
// unidentifiable clients share one bucket; that is an accepted weakness of
// header-derived identity, not something to paper over here.
func ClientID(forwardedFor, remoteAddr string) string {
	if forwardedFor != "" {
		first := strings.TrimSpace(strings.SplitN(forwardedFor, ",", 2)[0])
		if first != "" {
			return first
		}
	}
	if remoteAddr != "" {
		if host, _, err := net.SplitHostPort(remoteAddr); err == nil && host != "" {
			return host
		}
		return remoteAddr
	}
	return "unknown"
}
