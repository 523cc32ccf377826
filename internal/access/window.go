// Package access decides whether a caller may register for an event right
// now, based on the event's public release date and the caller's standing.
package access

import (
	"errors"
	"time"
)

// Tier is the eligibility tier under which a signup is admitted.
type Tier string

const (
	TierPublic      Tier = "public"
	TierMemberEarly Tier = "member_early"
	TierFlintaEarly Tier = "flinta_early"
	TierClosed      Tier = "closed"
)

var (
	// ErrMembersOnly means the caller is inside the member early-access
	// window without being a member or FLINTA-attested.
	ErrMembersOnly = errors.New("member early access only")
	// ErrFlintaOnly means the caller is inside the FLINTA early-access
	// window without attestation.
	ErrFlintaOnly = errors.New("FLINTA early access only")
	// ErrNotOpen means registration has not opened in any window yet.
	ErrNotOpen = errors.New("registration not open yet")
)

// Evaluator computes early-access windows backward from an event's release
// date. Both windows are half-open: [releaseDate - days, releaseDate).
type Evaluator struct {
	MemberEarlyDays int
	FlintaEarlyDays int
}

// Evaluate returns the tier under which the caller may register now, or a
// rejection error. A nil or zero release date means the event is already
// public. FLINTA attestation admits the caller inside either window; it is
// the stronger override regardless of membership.
func (e Evaluator) Evaluate(now time.Time, releaseDate *time.Time, isMember, flintaAttested bool) (Tier, error) {
	if releaseDate == nil || releaseDate.IsZero() {
		return TierPublic, nil
	}
	release := *releaseDate
	if !now.Before(release) {
		return TierPublic, nil
	}

	memberStart := release.AddDate(0, 0, -e.MemberEarlyDays)
	flintaStart := release.AddDate(0, 0, -e.FlintaEarlyDays)

	if e.MemberEarlyDays > 0 && !now.Before(memberStart) {
		if isMember {
			return TierMemberEarly, nil
		}
		if flintaAttested {
			return TierFlintaEarly, nil
		}
		return TierClosed, ErrMembersOnly
	}
	if e.FlintaEarlyDays > 0 && !now.Before(flintaStart) {
		if flintaAttested {
			return TierFlintaEarly, nil
		}
		return TierClosed, ErrFlintaOnly
	}
	return TierClosed, ErrNotOpen
}
