package registrations

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// NewCancelToken returns a raw URL-safe cancellation token and its digest.
// The raw token goes into the emailed cancellation link only; the database
// stores and matches the digest, so it never holds a usable credential.
func NewCancelToken() (raw, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("read random: %w", err)
	}
	raw = base64.RawURLEncoding.EncodeToString(b)
	return raw, HashCancelToken(raw), nil
}

// HashCancelToken returns the hex SHA-256 digest of a raw token, used for
// storage and lookup.
func HashCancelToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
