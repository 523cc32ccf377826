package registrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kiezrad/backend/internal/models"
)

// ErrDuplicate is returned when an active registration already exists for
// the identity, event and level (backed by partial unique indexes).
var ErrDuplicate = errors.New("registration already exists")

const registrationColumns = `id, event_id, ride_level, user_id, email, first_name, last_name,
	is_waitlist, cancel_token_hash, cancel_token_issued_at,
	waitlist_joined_at, waitlist_promoted_at, cancelled_at, created_at`

// Repository handles registration persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a registrations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRegistration(row rowScanner, reg *models.Registration) error {
	return row.Scan(
		&reg.ID, &reg.EventID, &reg.RideLevel, &reg.UserID, &reg.Email,
		&reg.FirstName, &reg.LastName, &reg.IsWaitlist,
		&reg.CancelTokenHash, &reg.CancelTokenIssuedAt,
		&reg.WaitlistJoinedAt, &reg.WaitlistPromotedAt, &reg.CancelledAt,
		&reg.CreatedAt,
	)
}

// CreateWithCapacity inserts a registration, deciding confirmed versus
// waitlisted against capacity inside one transaction. An advisory lock per
// (event_id, ride_level) serializes concurrent signups so the confirmed
// count can never overshoot capacity. capacity == nil means uncapped.
func (r *Repository) CreateWithCapacity(ctx context.Context, reg *models.Registration, capacity *int) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	lockKey := fmt.Sprintf("registrations:%d:%s", reg.EventID, reg.RideLevel)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return fmt.Errorf("advisory lock: %w", err)
	}

	reg.IsWaitlist = false
	if capacity != nil {
		var confirmed int
		const countQ = `SELECT COUNT(*) FROM registrations
			WHERE event_id = $1 AND ride_level = $2 AND is_waitlist = FALSE AND cancelled_at IS NULL`
		if err := tx.QueryRow(ctx, countQ, reg.EventID, reg.RideLevel).Scan(&confirmed); err != nil {
			return fmt.Errorf("count confirmed: %w", err)
		}
		reg.IsWaitlist = confirmed >= *capacity
	}

	const insertQ = `INSERT INTO registrations
		(id, event_id, ride_level, user_id, email, first_name, last_name, is_waitlist, cancel_token_hash, waitlist_joined_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, CASE WHEN $7 THEN NOW() END)
		RETURNING id, cancel_token_issued_at, waitlist_joined_at, created_at`
	err = tx.QueryRow(ctx, insertQ,
		reg.EventID, reg.RideLevel, reg.UserID, reg.Email, reg.FirstName, reg.LastName,
		reg.IsWaitlist, reg.CancelTokenHash,
	).Scan(&reg.ID, &reg.CancelTokenIssuedAt, &reg.WaitlistJoinedAt, &reg.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("insert registration: %w", err)
	}
	return tx.Commit(ctx)
}

// FindActive returns the non-cancelled registration for the identity (user
// ID when present, otherwise email) on this event and level, or nil.
func (r *Repository) FindActive(ctx context.Context, eventID int64, level string, userID *uuid.UUID, email string) (*models.Registration, error) {
	var (
		q    string
		args []any
	)
	if userID != nil {
		q = `SELECT ` + registrationColumns + ` FROM registrations
			WHERE event_id = $1 AND ride_level = $2 AND user_id = $3 AND cancelled_at IS NULL`
		args = []any{eventID, level, *userID}
	} else {
		q = `SELECT ` + registrationColumns + ` FROM registrations
			WHERE event_id = $1 AND ride_level = $2 AND user_id IS NULL AND lower(email) = lower($3) AND cancelled_at IS NULL`
		args = []any{eventID, level, email}
	}
	var reg models.Registration
	err := scanRegistration(r.pool.QueryRow(ctx, q, args...), &reg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// ConfirmedCounts returns the confirmed registration count per ride level
// for an event.
func (r *Repository) ConfirmedCounts(ctx context.Context, eventID int64) (map[string]int, error) {
	const q = `SELECT ride_level, COUNT(*) FROM registrations
		WHERE event_id = $1 AND is_waitlist = FALSE AND cancelled_at IS NULL
		GROUP BY ride_level`
	rows, err := r.pool.Query(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var level string
		var n int
		if err := rows.Scan(&level, &n); err != nil {
			return nil, err
		}
		counts[level] = n
	}
	return counts, rows.Err()
}

// CancelByOwner cancels the caller's own active registration and returns the
// row as it was before cancellation took effect on the waitlist flag. A nil
// result means nothing matched (already cancelled or never registered).
func (r *Repository) CancelByOwner(ctx context.Context, userID uuid.UUID, eventID int64, level string) (*models.Registration, error) {
	const q = `UPDATE registrations SET cancelled_at = NOW()
		WHERE event_id = $1 AND ride_level = $2 AND user_id = $3 AND cancelled_at IS NULL
		RETURNING ` + registrationColumns
	var reg models.Registration
	err := scanRegistration(r.pool.QueryRow(ctx, q, eventID, level, userID), &reg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// CancelByTokenHash cancels the active registration matching a cancellation
// token digest, regardless of event. A nil result means the token matches no
// active row.
func (r *Repository) CancelByTokenHash(ctx context.Context, hash string) (*models.Registration, error) {
	const q = `UPDATE registrations SET cancelled_at = NOW()
		WHERE cancel_token_hash = $1 AND cancelled_at IS NULL
		RETURNING ` + registrationColumns
	var reg models.Registration
	err := scanRegistration(r.pool.QueryRow(ctx, q, hash), &reg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

// PromoteNext flips the earliest-joined waitlisted registration for the
// event and level to confirmed, rotating its cancellation token to the new
// digest. It takes the same advisory lock as signup and re-checks the
// confirmed count under it: a signup landing between the cancellation and
// the promotion takes the freed seat, and promoting on top of it would push
// the level over capacity. FOR UPDATE SKIP LOCKED keeps concurrent
// cancellations from promoting the same row twice. A nil result means nobody
// is waiting or the freed seat was already re-taken.
func (r *Repository) PromoteNext(ctx context.Context, eventID int64, level, newTokenHash string, capacity *int) (*models.Registration, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	lockKey := fmt.Sprintf("registrations:%d:%s", eventID, level)
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, lockKey); err != nil {
		return nil, fmt.Errorf("advisory lock: %w", err)
	}

	if capacity != nil {
		var confirmed int
		const countQ = `SELECT COUNT(*) FROM registrations
			WHERE event_id = $1 AND ride_level = $2 AND is_waitlist = FALSE AND cancelled_at IS NULL`
		if err := tx.QueryRow(ctx, countQ, eventID, level).Scan(&confirmed); err != nil {
			return nil, fmt.Errorf("count confirmed: %w", err)
		}
		if confirmed >= *capacity {
			return nil, nil
		}
	}

	const q = `UPDATE registrations
		SET is_waitlist = FALSE, waitlist_promoted_at = NOW(),
			cancel_token_hash = $3, cancel_token_issued_at = NOW()
		WHERE id = (
			SELECT id FROM registrations
			WHERE event_id = $1 AND ride_level = $2 AND is_waitlist AND cancelled_at IS NULL
			ORDER BY waitlist_joined_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + registrationColumns
	var reg models.Registration
	err = scanRegistration(tx.QueryRow(ctx, q, eventID, level, newTokenHash), &reg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &reg, nil
}
