package registrations

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kiezrad/backend/internal/access"
	"github.com/kiezrad/backend/internal/capacity"
	"github.com/kiezrad/backend/internal/cms"
	"github.com/kiezrad/backend/internal/models"
	"github.com/kiezrad/backend/pkg/queue"
)

const (
	maxNameLen  = 100
	maxEmailLen = 254
	maxLevelLen = 50
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Store is the persistence boundary for registrations.
type Store interface {
	CreateWithCapacity(ctx context.Context, reg *models.Registration, capacity *int) error
	FindActive(ctx context.Context, eventID int64, level string, userID *uuid.UUID, email string) (*models.Registration, error)
	ConfirmedCounts(ctx context.Context, eventID int64) (map[string]int, error)
	CancelByOwner(ctx context.Context, userID uuid.UUID, eventID int64, level string) (*models.Registration, error)
	CancelByTokenHash(ctx context.Context, hash string) (*models.Registration, error)
	PromoteNext(ctx context.Context, eventID int64, level, newTokenHash string, capacity *int) (*models.Registration, error)
}

// EventSource provides event access data from the content source.
type EventSource interface {
	EventAccess(ctx context.Context, eventID int64) (*models.EventAccess, error)
}

// ProfileSource resolves an authenticated user's profile.
type ProfileSource interface {
	Profile(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// BotVerifier checks guest signups for bots.
type BotVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// Notifier dispatches a notification email job. Implementations never fail
// the calling operation.
type Notifier interface {
	Notify(ctx context.Context, p queue.NotificationPayload)
}

// Service orchestrates signup and cancellation: access windows, capacity,
// state transitions, promotion and notification dispatch.
type Service struct {
	store     Store
	events    EventSource
	profiles  ProfileSource
	bots      BotVerifier
	notifier  Notifier
	evaluator access.Evaluator

	cancelBaseURL string
	now           func() time.Time
	logger        *zap.Logger
}

// NewService creates the registration service.
func NewService(store Store, events EventSource, profiles ProfileSource, bots BotVerifier, notifier Notifier, evaluator access.Evaluator, cancelBaseURL string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:         store,
		events:        events,
		profiles:      profiles,
		bots:          bots,
		notifier:      notifier,
		evaluator:     evaluator,
		cancelBaseURL: cancelBaseURL,
		now:           time.Now,
		logger:        logger,
	}
}

// SignupParams carries one signup request. UserID is set for authenticated
// callers; guests identify by email and pass the bot check.
type SignupParams struct {
	EventID        int64
	RideLevel      string
	EventType      string
	EventTitle     string
	FirstName      string
	LastName       string
	Email          string
	FlintaAttested bool
	TurnstileToken string
	RemoteIP       string
	UserID         *uuid.UUID
}

// SignupResult reports whether the registration was confirmed or waitlisted.
type SignupResult struct {
	Waitlisted bool
}

// Signup validates and persists a registration, waitlisting it when the
// level is at capacity, then dispatches the matching notification.
func (s *Service) Signup(ctx context.Context, p SignupParams) (*SignupResult, error) {
	level := p.RideLevel
	if p.EventType == models.WorkshopLevel {
		level = models.WorkshopLevel
	}

	switch {
	case p.EventID <= 0:
		return nil, errValidation("a valid event is required")
	case level == "" || len(level) > maxLevelLen:
		return nil, errValidation("a ride level is required")
	case p.FirstName == "" || len(p.FirstName) > maxNameLen:
		return nil, errValidation("a first name up to 100 characters is required")
	case p.LastName == "" || len(p.LastName) > maxNameLen:
		return nil, errValidation("a last name up to 100 characters is required")
	}

	email := p.Email
	isMember := false
	if p.UserID != nil {
		u, err := s.profiles.Profile(ctx, *p.UserID)
		if err != nil {
			return nil, errInternal("could not load your profile", err)
		}
		if u == nil {
			return nil, errUnauthorized("your session is no longer valid")
		}
		email = u.Email
		isMember = u.IsMember
	} else {
		if email == "" || len(email) > maxEmailLen || !emailPattern.MatchString(email) {
			return nil, errValidation("a valid email address is required")
		}
		ok, err := s.bots.Verify(ctx, p.TurnstileToken, p.RemoteIP)
		if err != nil {
			return nil, errUpstream("verification is temporarily unavailable, please try again", err)
		}
		if !ok {
			return nil, errForbidden("we could not verify that you are human")
		}
	}

	ea, err := s.events.EventAccess(ctx, p.EventID)
	if err != nil {
		if errors.Is(err, cms.ErrNotFound) {
			return nil, errNotFound("event not found")
		}
		return nil, errUpstream("event information is temporarily unavailable", err)
	}

	if ea.IsFlintaOnly && !p.FlintaAttested {
		return nil, errForbidden("this event is open to FLINTA participants only")
	}

	if _, err := s.evaluator.Evaluate(s.now(), ea.PublicReleaseDate, isMember, p.FlintaAttested); err != nil {
		switch {
		case errors.Is(err, access.ErrMembersOnly):
			return nil, errForbidden("registration is currently open to members only")
		case errors.Is(err, access.ErrFlintaOnly):
			return nil, errForbidden("registration is currently open to FLINTA participants only")
		default:
			return nil, errForbidden("registration is not open yet")
		}
	}

	existing, err := s.store.FindActive(ctx, p.EventID, level, p.UserID, email)
	if err != nil {
		return nil, errInternal("could not check your registration", err)
	}
	if existing != nil {
		if existing.IsWaitlist {
			return nil, errConflict("you are already on the waitlist for this ride")
		}
		return nil, errConflict("you are already registered for this ride")
	}

	rawToken, tokenHash, err := NewCancelToken()
	if err != nil {
		return nil, errInternal("could not complete your registration", err)
	}

	reg := &models.Registration{
		EventID:         p.EventID,
		RideLevel:       level,
		UserID:          p.UserID,
		Email:           email,
		FirstName:       p.FirstName,
		LastName:        p.LastName,
		CancelTokenHash: tokenHash,
	}
	if err := s.store.CreateWithCapacity(ctx, reg, capacity.For(level, ea)); err != nil {
		if errors.Is(err, ErrDuplicate) {
			return nil, errConflict("you are already registered for this ride")
		}
		return nil, errInternal("could not save your registration", err)
	}

	title := p.EventTitle
	if title == "" {
		title = ea.Title
	}
	kind := queue.KindConfirmed
	if reg.IsWaitlist {
		kind = queue.KindWaitlisted
	}
	s.notifier.Notify(ctx, queue.NotificationPayload{
		Kind:           kind,
		EventID:        reg.EventID,
		RegistrationID: reg.ID,
		RecipientEmail: reg.Email,
		RecipientName:  reg.FullName(),
		EventTitle:     title,
		LevelLabel:     level,
		CancelURL:      s.cancelBaseURL + rawToken,
	})

	return &SignupResult{Waitlisted: reg.IsWaitlist}, nil
}

// CancelParams carries one cancellation request: either a token from an
// emailed link, or an authenticated (user, event, level) triple.
type CancelParams struct {
	EventID   int64
	RideLevel string
	Token     string
	UserID    *uuid.UUID
}

// Cancel marks exactly one active registration cancelled. A repeat cancel
// matches nothing and reports not found. When a confirmed seat is freed, the
// earliest-joined waitlisted registrant is promoted with a fresh token.
func (s *Service) Cancel(ctx context.Context, p CancelParams) error {
	var (
		cancelled *models.Registration
		err       error
	)
	switch {
	case p.Token != "":
		cancelled, err = s.store.CancelByTokenHash(ctx, HashCancelToken(p.Token))
	case p.UserID != nil:
		if p.EventID <= 0 || p.RideLevel == "" {
			return errValidation("eventId and rideLevel are required")
		}
		cancelled, err = s.store.CancelByOwner(ctx, *p.UserID, p.EventID, p.RideLevel)
	default:
		return errUnauthorized("sign in or use your cancellation link")
	}
	if err != nil {
		return errInternal("could not cancel your registration", err)
	}
	if cancelled == nil {
		return errNotFound("registration not found or already cancelled")
	}

	// only a freed confirmed seat opens a spot; cancelling a waitlist
	// entry never promotes
	if !cancelled.IsWaitlist {
		s.promoteNext(ctx, cancelled.EventID, cancelled.RideLevel)
	}
	return nil
}

// promoteNext upgrades the earliest waitlisted registration after a
// confirmed cancellation. The store re-checks the confirmed count against
// capacity under the signup lock, so a signup that grabbed the freed seat in
// the meantime suppresses the promotion instead of overshooting the level.
// The cancellation itself has already succeeded, so failures here are
// logged, not surfaced.
func (s *Service) promoteNext(ctx context.Context, eventID int64, level string) {
	var (
		title string
		seats *int
	)
	if ea, err := s.events.EventAccess(ctx, eventID); err != nil {
		s.logger.Warn("event data unavailable during promotion, promoting without capacity guard",
			zap.Error(err), zap.Int64("event_id", eventID), zap.String("ride_level", level))
	} else {
		title = ea.Title
		seats = capacity.For(level, ea)
	}

	rawToken, tokenHash, err := NewCancelToken()
	if err != nil {
		s.logger.Error("token rotation for promotion failed", zap.Error(err),
			zap.Int64("event_id", eventID), zap.String("ride_level", level))
		return
	}
	promoted, err := s.store.PromoteNext(ctx, eventID, level, tokenHash, seats)
	if err != nil {
		s.logger.Error("waitlist promotion failed", zap.Error(err),
			zap.Int64("event_id", eventID), zap.String("ride_level", level))
		return
	}
	if promoted == nil {
		return
	}

	s.notifier.Notify(ctx, queue.NotificationPayload{
		Kind:           queue.KindPromoted,
		EventID:        eventID,
		RegistrationID: promoted.ID,
		RecipientEmail: promoted.Email,
		RecipientName:  promoted.FullName(),
		EventTitle:     title,
		LevelLabel:     level,
		CancelURL:      s.cancelBaseURL + rawToken,
	})
}

// LevelCounts returns confirmed counts per ride level and their total for an
// event.
func (s *Service) LevelCounts(ctx context.Context, eventID int64) (map[string]int, int, error) {
	counts, err := s.store.ConfirmedCounts(ctx, eventID)
	if err != nil {
		return nil, 0, errInternal("could not load registration counts", err)
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return counts, total, nil
}
