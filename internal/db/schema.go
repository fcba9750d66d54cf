package db

import (
	"context"

	"github.com/pkg/errors"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY,
		username      TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'admin',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id         UUID PRIMARY KEY,
		user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token      TEXT NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS collections (
		name       TEXT PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id              BIGSERIAL PRIMARY KEY,
		collection_name TEXT NOT NULL REFERENCES collections(name) ON DELETE CASCADE,
		title           TEXT NOT NULL,
		type            TEXT NOT NULL,
		date            DATE NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		address         TEXT NOT NULL,
		latitude        DOUBLE PRECISION NOT NULL,
		longitude       DOUBLE PRECISION NOT NULL,
		position        INTEGER NOT NULL,
		favorite        BOOLEAN NOT NULL DEFAULT false
	)`,
	`CREATE INDEX IF NOT EXISTS events_collection_position_idx ON events (collection_name, position)`,
	`CREATE TABLE IF NOT EXISTS active_collection (
		id   SMALLINT PRIMARY KEY CHECK (id = 1),
		name TEXT NOT NULL
	)`,
}

// Migrate applies the schema statements in order. Every statement is
// idempotent so it is safe to run on each deploy.
func Migrate(ctx context.Context, q Querier) error {
	for i, stmt := range schema {
		if _, err := q.Exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migration step %d", i+1)
		}
	}
	return nil
}
