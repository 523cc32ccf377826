package models

import (
	"time"

	"github.com/google/uuid"
)

// RegistrationState is the explicit lifecycle state of a registration.
type RegistrationState string

const (
	StateConfirmed  RegistrationState = "confirmed"
	StateWaitlisted RegistrationState = "waitlisted"
	StateCancelled  RegistrationState = "cancelled"
)

// WorkshopLevel is the reserved ride level name for workshop signups.
const WorkshopLevel = "workshop"

// Registration is a signup for one ride level of an event. It is persisted
// as boolean/timestamp columns; State derives the lifecycle state so callers
// never combine the flags by hand.
type Registration struct {
	ID                  uuid.UUID  `json:"id"`
	EventID             int64      `json:"event_id"`
	RideLevel           string     `json:"ride_level"`
	UserID              *uuid.UUID `json:"user_id,omitempty"`
	Email               string     `json:"email"`
	FirstName           string     `json:"first_name"`
	LastName            string     `json:"last_name"`
	IsWaitlist          bool       `json:"is_waitlist"`
	CancelTokenHash     string     `json:"-"`
	CancelTokenIssuedAt time.Time  `json:"-"`
	WaitlistJoinedAt    *time.Time `json:"waitlist_joined_at,omitempty"`
	WaitlistPromotedAt  *time.Time `json:"waitlist_promoted_at,omitempty"`
	CancelledAt         *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// State returns the lifecycle state. A cancelled row is terminal regardless
// of the waitlist flag.
func (r *Registration) State() RegistrationState {
	switch {
	case r.CancelledAt != nil:
		return StateCancelled
	case r.IsWaitlist:
		return StateWaitlisted
	default:
		return StateConfirmed
	}
}

// FullName returns the display name for notification mail.
func (r *Registration) FullName() string {
	return r.FirstName + " " + r.LastName
}
