// Package store implements the auth persistence capability over PostgreSQL
// using database/sql and lib/pq. Store satisfies auth.Storage; uniqueness
// is enforced by the schema's constraints, and constraint violations are
// mapped onto auth.ErrDuplicate so callers can retry or swallow them.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/DaylightLtd/minidex/pkg/auth"
)

// DBTX is the subset of database/sql used by queries. Both *sql.DB and
// *sql.Tx satisfy it.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx begins a transaction, runs fn with a transactional handle, and
// commits on success or rolls back on error/panic. Panics are rethrown.
func WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Store persists users, credentials, and tokens. The zero q is bound to a
// *sql.DB; inside WithinTx it is rebound to the transaction.
type Store struct {
	q  DBTX
	db *sql.DB // nil when bound to a transaction
}

// New creates a store over the given database handle.
func New(db *sql.DB) *Store {
	return &Store{q: db, db: db}
}

// WithinTx implements auth.Storage. Calls nested inside a transaction
// reuse the surrounding one.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx auth.Storage) error) error {
	if s.db == nil {
		return fn(ctx, s)
	}
	return WithTx(ctx, s.db, func(ctx context.Context, tx DBTX) error {
		return fn(ctx, &Store{q: tx})
	})
}

// CreateUser implements auth.Storage.
func (s *Store) CreateUser(ctx context.Context, user *auth.User) error {
	query := `
		INSERT INTO users (id, display_name, roles, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	now := time.Now()
	_, err := s.q.ExecContext(ctx, query,
		user.ID,
		nullString(user.DisplayName),
		int64(user.Roles),
		user.IsActive,
		now,
		now,
	)
	if err != nil {
		return mapError(err, "create user")
	}

	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// CreateCredential implements auth.Storage.
func (s *Store) CreateCredential(ctx context.Context, credential *auth.Credential) error {
	query := `
		INSERT INTO credentials (id, user_id, type, identifier, secret_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	now := time.Now()
	_, err := s.q.ExecContext(ctx, query,
		credential.ID,
		credential.UserID,
		string(credential.Type),
		credential.Identifier,
		credential.SecretHash,
		now,
		now,
	)
	if err != nil {
		return mapError(err, "create credential")
	}

	credential.CreatedAt = now
	credential.UpdatedAt = now
	return nil
}

// CredentialByIdentifier implements auth.Storage.
func (s *Store) CredentialByIdentifier(ctx context.Context, typ auth.CredentialType, identifier string) (*auth.Credential, *auth.User, error) {
	query := `
		SELECT c.id, c.user_id, c.type, c.identifier, c.secret_hash, c.created_at, c.updated_at,
		       u.id, u.display_name, u.roles, u.is_active, u.created_at, u.updated_at
		FROM credentials c
		JOIN users u ON u.id = c.user_id
		WHERE c.type = $1 AND c.identifier = $2
	`

	var (
		credential  auth.Credential
		user        auth.User
		credType    string
		displayName sql.NullString
		roles       int64
	)
	err := s.q.QueryRowContext(ctx, query, string(typ), identifier).Scan(
		&credential.ID,
		&credential.UserID,
		&credType,
		&credential.Identifier,
		&credential.SecretHash,
		&credential.CreatedAt,
		&credential.UpdatedAt,
		&user.ID,
		&displayName,
		&roles,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get credential: %w", err)
	}

	credential.Type = auth.CredentialType(credType)
	user.DisplayName = displayName.String
	user.Roles = auth.Roles(roles)
	return &credential, &user, nil
}

// CreateToken implements auth.Storage.
func (s *Store) CreateToken(ctx context.Context, token *auth.Token) error {
	query := `
		INSERT INTO user_tokens (id, user_id, type, value, expires_at, created_at, is_revoked)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.q.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		string(token.Type),
		token.Value,
		token.ExpiresAt,
		token.CreatedAt,
		token.IsRevoked,
	)
	if err != nil {
		return mapError(err, "create token")
	}
	return nil
}

// TokenByValue implements auth.Storage.
func (s *Store) TokenByValue(ctx context.Context, value string) (*auth.Token, *auth.User, error) {
	query := `
		SELECT t.id, t.user_id, t.type, t.value, t.expires_at, t.created_at, t.is_revoked,
		       u.id, u.display_name, u.roles, u.is_active, u.created_at, u.updated_at
		FROM user_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.value = $1
	`

	var (
		token       auth.Token
		user        auth.User
		tokenType   string
		displayName sql.NullString
		roles       int64
	)
	err := s.q.QueryRowContext(ctx, query, value).Scan(
		&token.ID,
		&token.UserID,
		&tokenType,
		&token.Value,
		&token.ExpiresAt,
		&token.CreatedAt,
		&token.IsRevoked,
		&user.ID,
		&displayName,
		&roles,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil, auth.ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("get token: %w", err)
	}

	token.Type = auth.TokenType(tokenType)
	user.DisplayName = displayName.String
	user.Roles = auth.Roles(roles)
	return &token, &user, nil
}

// MarkTokenRevoked implements auth.Storage.
func (s *Store) MarkTokenRevoked(ctx context.Context, tokenID uuid.UUID) error {
	query := `UPDATE user_tokens SET is_revoked = TRUE WHERE id = $1`

	if _, err := s.q.ExecContext(ctx, query, tokenID); err != nil {
		return fmt.Errorf("mark token revoked: %w", err)
	}
	return nil
}

// MarkAllTokensRevoked implements auth.Storage.
func (s *Store) MarkAllTokensRevoked(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE user_tokens SET is_revoked = TRUE WHERE user_id = $1 AND is_revoked = FALSE`

	if _, err := s.q.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("mark all tokens revoked: %w", err)
	}
	return nil
}

// ActiveTokens implements auth.Storage.
func (s *Store) ActiveTokens(ctx context.Context, userID uuid.UUID) ([]auth.Token, error) {
	query := `
		SELECT id, user_id, type, value, expires_at, created_at, is_revoked
		FROM user_tokens
		WHERE user_id = $1 AND is_revoked = FALSE
		ORDER BY created_at
	`

	rows, err := s.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list active tokens: %w", err)
	}
	defer rows.Close()

	var tokens []auth.Token
	for rows.Next() {
		var (
			token     auth.Token
			tokenType string
		)
		if err := rows.Scan(
			&token.ID,
			&token.UserID,
			&tokenType,
			&token.Value,
			&token.ExpiresAt,
			&token.CreatedAt,
			&token.IsRevoked,
		); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		token.Type = auth.TokenType(tokenType)
		tokens = append(tokens, token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list active tokens: %w", err)
	}
	return tokens, nil
}

func mapError(err error, op string) error {
	if IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", op, auth.ErrDuplicate)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
