package access

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var release = time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)

func evaluator() Evaluator {
	return Evaluator{MemberEarlyDays: 2, FlintaEarlyDays: 4}
}

func TestPublicWithoutReleaseDate(t *testing.T) {
	tier, err := evaluator().Evaluate(time.Now(), nil, false, false)
	require.NoError(t, err)
	assert.Equal(t, TierPublic, tier)

	zero := time.Time{}
	tier, err = evaluator().Evaluate(time.Now(), &zero, false, false)
	require.NoError(t, err)
	assert.Equal(t, TierPublic, tier)
}

func TestPublicAtRelease(t *testing.T) {
	// the early windows are half-open: at the release instant everyone
	// is admitted as public
	tier, err := evaluator().Evaluate(release, &release, false, false)
	require.NoError(t, err)
	assert.Equal(t, TierPublic, tier)

	tier, err = evaluator().Evaluate(release.Add(time.Hour), &release, false, false)
	require.NoError(t, err)
	assert.Equal(t, TierPublic, tier)
}

func TestMemberWindowInclusiveStart(t *testing.T) {
	at := release.AddDate(0, 0, -2)

	tier, err := evaluator().Evaluate(at, &release, true, false)
	require.NoError(t, err)
	assert.Equal(t, TierMemberEarly, tier)

	_, err = evaluator().Evaluate(at, &release, false, false)
	assert.ErrorIs(t, err, ErrMembersOnly)
}

func TestAttestationOverridesMembership(t *testing.T) {
	inMemberWindow := release.AddDate(0, 0, -1)
	tier, err := evaluator().Evaluate(inMemberWindow, &release, false, true)
	require.NoError(t, err)
	assert.Equal(t, TierFlintaEarly, tier)
}

func TestFlintaWindow(t *testing.T) {
	at := release.AddDate(0, 0, -3)

	tier, err := evaluator().Evaluate(at, &release, false, true)
	require.NoError(t, err)
	assert.Equal(t, TierFlintaEarly, tier)

	// membership does not open the FLINTA window
	_, err = evaluator().Evaluate(at, &release, true, false)
	assert.ErrorIs(t, err, ErrFlintaOnly)

	// inclusive start
	tier, err = evaluator().Evaluate(release.AddDate(0, 0, -4), &release, false, true)
	require.NoError(t, err)
	assert.Equal(t, TierFlintaEarly, tier)
}

func TestClosedBeforeAllWindows(t *testing.T) {
	at := release.AddDate(0, 0, -5)
	tier, err := evaluator().Evaluate(at, &release, true, true)
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.Equal(t, TierClosed, tier)
}

func TestNoWindowsConfigured(t *testing.T) {
	e := Evaluator{}
	_, err := e.Evaluate(release.Add(-time.Hour), &release, true, true)
	assert.ErrorIs(t, err, ErrNotOpen)
}
