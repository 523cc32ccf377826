// Package worker runs the background notification processor.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kiezrad/backend/internal/emaillogs"
	"github.com/kiezrad/backend/internal/models"
	"github.com/kiezrad/backend/internal/notify"
	"github.com/kiezrad/backend/pkg/queue"
)

// Sender delivers one rendered mail.
type Sender interface {
	Send(ctx context.Context, to, subject, htmlBody, textBody string) error
}

// NotificationProcessor sends queued notification emails and records every
// attempt in email_logs. Send failures never reach the signup/cancel path;
// the queue retries them and parks repeat failures in the DLQ.
type NotificationProcessor struct {
	queue       *queue.Queue
	mailer      Sender
	logs        *emaillogs.Repository
	sendTimeout time.Duration
	logger      *zap.Logger
}

// NewNotificationProcessor creates a notification processor.
func NewNotificationProcessor(q *queue.Queue, mailer Sender, logs *emaillogs.Repository, sendTimeout time.Duration, logger *zap.Logger) *NotificationProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationProcessor{queue: q, mailer: mailer, logs: logs, sendTimeout: sendTimeout, logger: logger}
}

// Process executes one notification job.
func (p *NotificationProcessor) Process(ctx context.Context, job *queue.Job) error {
	var payload queue.NotificationPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	msg := notify.Render(payload)

	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	defer cancel()
	sendErr := p.mailer.Send(sendCtx, payload.RecipientEmail, msg.Subject, msg.HTML, msg.Text)

	el := &models.EmailLog{
		EventID:        &payload.EventID,
		RegistrationID: &payload.RegistrationID,
		EmailType:      string(payload.Kind),
		RecipientEmail: payload.RecipientEmail,
		Subject:        msg.Subject,
		Status:         models.EmailLogStatusSent,
	}
	if sendErr != nil {
		el.Status = models.EmailLogStatusFailed
		el.ErrorMessage = sendErr.Error()
	} else {
		now := time.Now()
		el.SentAt = &now
	}
	if err := p.logs.Record(ctx, el); err != nil {
		p.logger.Error("record email log failed", zap.Error(err), zap.String("job_id", job.ID))
	}

	if sendErr != nil {
		return fmt.Errorf("send mail: %w", sendErr)
	}
	p.logger.Info("notification sent",
		zap.String("kind", string(payload.Kind)),
		zap.String("recipient", payload.RecipientEmail))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *NotificationProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("notification worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			time.Sleep(queue.RetryBackoff)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			time.Sleep(queue.RetryBackoff)
		}
	}
}
