// Package emaillogs persists the outcome of notification send attempts so
// failed deliveries can be followed up manually.
package emaillogs

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kiezrad/backend/internal/models"
)

// Repository handles email_logs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email logs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts one send-attempt outcome.
func (r *Repository) Record(ctx context.Context, el *models.EmailLog) error {
	const q = `INSERT INTO email_logs
		(id, event_id, registration_id, email_type, recipient_email, subject, status, sent_at, error_message)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''))
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q,
		el.EventID, el.RegistrationID, el.EmailType, el.RecipientEmail,
		el.Subject, el.Status, el.SentAt, el.ErrorMessage,
	).Scan(&el.ID, &el.CreatedAt)
}
