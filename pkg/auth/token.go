package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// DefaultTokenLength is the number of random bytes in a generated token
// value (32 bytes = 256 bits of entropy).
const DefaultTokenLength = 32

// TokenGenerator produces opaque bearer token values.
type TokenGenerator struct {
	length int
}

// NewTokenGenerator creates a generator producing values with the given
// number of random bytes. Lengths below 1 fall back to DefaultTokenLength.
func NewTokenGenerator(length int) *TokenGenerator {
	if length < 1 {
		length = DefaultTokenLength
	}
	return &TokenGenerator{length: length}
}

// Generate returns a new random token value encoded as URL-safe base64
// without padding. Uniqueness is enforced by the store's constraint, not
// here; the value space just makes collisions negligible.
func (g *TokenGenerator) Generate() (string, error) {
	raw := make([]byte, g.length)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashToken computes the hex-encoded SHA-256 of a token value. Used as the
// reverse-index cache key so invalidation, which starts from a persisted
// token record rather than a presented value, can locate the principal
// cache entry.
func HashToken(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
