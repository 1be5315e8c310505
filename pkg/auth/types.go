package auth

import (
	"time"

	"github.com/google/uuid"
)

// User is a registered account. Created at registration and immutable
// afterwards as far as this package is concerned.
type User struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name,omitempty"`
	Roles       Roles     `json:"roles"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CredentialType tags the credential variant. There is one variant today;
// the tag exists so further variants (recovery codes, passkeys) can carry
// their own identifier/secret shapes.
type CredentialType string

// CredentialUsernamePassword is a username identifier with a bcrypt-hashed
// password secret.
const CredentialUsernamePassword CredentialType = "username_password"

// Credential links an identifier and secret hash to a user. The identifier
// is unique per credential type. Never mutated after creation.
type Credential struct {
	ID         uuid.UUID      `json:"id"`
	UserID     uuid.UUID      `json:"user_id"`
	Type       CredentialType `json:"type"`
	Identifier string         `json:"identifier"`
	SecretHash string         `json:"-"` // never exposed
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TokenType tags the token variant.
type TokenType string

// TokenAccess is a short-lived bearer access token.
const TokenAccess TokenType = "access"

// Token is a persisted opaque bearer token. Rows are append-only:
// the only mutation ever applied is flipping IsRevoked from false to true.
type Token struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Type      TokenType `json:"type"`
	Value     string    `json:"-"` // opaque bearer value, never serialized
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	IsRevoked bool      `json:"is_revoked"`
}

// Valid reports whether the token is live at the given instant.
func (t *Token) Valid(now time.Time) bool {
	return !t.IsRevoked && t.ExpiresAt.After(now)
}

// Principal is the resolved identity of a successful authentication check.
// It is ephemeral: constructed on each validation, serialized into the
// cache, never persisted as its own row.
type Principal struct {
	UserID   uuid.UUID  `json:"user_id"`
	Roles    Roles      `json:"roles"`
	IsActive bool       `json:"is_active"`
	TokenID  *uuid.UUID `json:"token_id,omitempty"`
}
