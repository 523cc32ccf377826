// Package notify turns registration state changes into email jobs and
// renders the notification mail bodies.
package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/kiezrad/backend/pkg/queue"
)

// Dispatcher enqueues notification email jobs. Enqueue failures are logged
// and swallowed: the registration state change is already durable and must
// never be failed by its notification.
type Dispatcher struct {
	queue  *queue.Queue
	logger *zap.Logger
}

// NewDispatcher creates a dispatcher over the Redis job queue.
func NewDispatcher(q *queue.Queue, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{queue: q, logger: logger}
}

// Notify enqueues a notification job, best effort.
func (d *Dispatcher) Notify(ctx context.Context, p queue.NotificationPayload) {
	if err := d.queue.EnqueueNotification(ctx, p); err != nil {
		d.logger.Error("notification enqueue failed",
			zap.Error(err),
			zap.String("kind", string(p.Kind)),
			zap.String("recipient", p.RecipientEmail))
	}
}
