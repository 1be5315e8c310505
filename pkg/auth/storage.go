package auth

import (
	"context"

	"github.com/google/uuid"
)

// Storage is the persistence capability consumed by this package. The
// relational implementation lives in pkg/store; MemStorage in this package
// backs tests and single-process development.
//
// Lookups return ErrNotFound when no row matches. Writes that violate a
// uniqueness constraint return ErrDuplicate.
type Storage interface {
	// WithinTx runs fn inside a single atomic unit of work. The Storage
	// passed to fn is bound to the transaction; the transaction commits if
	// fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Storage) error) error

	CreateUser(ctx context.Context, user *User) error
	CreateCredential(ctx context.Context, credential *Credential) error
	// CredentialByIdentifier returns the credential and its owning user.
	CredentialByIdentifier(ctx context.Context, typ CredentialType, identifier string) (*Credential, *User, error)

	CreateToken(ctx context.Context, token *Token) error
	// TokenByValue returns the token and its owning user.
	TokenByValue(ctx context.Context, value string) (*Token, *User, error)
	// MarkTokenRevoked flips is_revoked on one token. Idempotent.
	MarkTokenRevoked(ctx context.Context, tokenID uuid.UUID) error
	// MarkAllTokensRevoked flips is_revoked on every non-revoked token of
	// the user in one bulk update. Idempotent.
	MarkAllTokensRevoked(ctx context.Context, userID uuid.UUID) error
	// ActiveTokens lists the user's non-revoked tokens.
	ActiveTokens(ctx context.Context, userID uuid.UUID) ([]Token, error)
}
