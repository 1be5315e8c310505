package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema is the auth subsystem's DDL. Migration management proper belongs
// to the deployment; EnsureSchema exists so a fresh database can bootstrap
// itself.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id           UUID PRIMARY KEY,
	display_name TEXT,
	roles        BIGINT NOT NULL DEFAULT 0,
	is_active    BOOLEAN NOT NULL DEFAULT TRUE,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS credentials (
	id          UUID PRIMARY KEY,
	user_id     UUID NOT NULL REFERENCES users(id),
	type        TEXT NOT NULL,
	identifier  TEXT NOT NULL,
	secret_hash TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL,
	CONSTRAINT credentials_type_identifier_key UNIQUE (type, identifier)
);

CREATE TABLE IF NOT EXISTS user_tokens (
	id         UUID PRIMARY KEY,
	user_id    UUID NOT NULL REFERENCES users(id),
	type       TEXT NOT NULL,
	value      TEXT NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	is_revoked BOOLEAN NOT NULL DEFAULT FALSE,
	CONSTRAINT user_tokens_value_key UNIQUE (value)
);

CREATE INDEX IF NOT EXISTS idx_user_tokens_user_id ON user_tokens(user_id);
`

// EnsureSchema creates the auth tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
