package registrations

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var urlSafe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func TestNewCancelToken(t *testing.T) {
	raw, hash, err := NewCancelToken()
	require.NoError(t, err)

	// 32 random bytes, URL-safe, no padding
	assert.Len(t, raw, 43)
	assert.Regexp(t, urlSafe, raw)

	// hex SHA-256 digest
	assert.Len(t, hash, 64)
	assert.Equal(t, HashCancelToken(raw), hash)
}

func TestHashIsDeterministic(t *testing.T) {
	assert.Equal(t, HashCancelToken("abc"), HashCancelToken("abc"))
	assert.NotEqual(t, HashCancelToken("abc"), HashCancelToken("abd"))
}

func TestTokensAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		raw, _, err := NewCancelToken()
		require.NoError(t, err)
		require.False(t, seen[raw], "duplicate token generated")
		seen[raw] = true
	}
}
