package db

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema statements are idempotent so every binary can run them at startup.
//
// Two constraints carry the core invariants:
//   - reservations_code_uniq backs the code-collision retry loop,
//   - reservations_event_user_active_uniq expresses "at most one
//     non-cancelled reservation per (user, event)".
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		name          TEXT NOT NULL,
		role          TEXT NOT NULL,
		active        BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id           TEXT PRIMARY KEY,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		category     TEXT NOT NULL,
		venue        TEXT NOT NULL DEFAULT '',
		city         TEXT NOT NULL DEFAULT '',
		start_at     TIMESTAMPTZ NOT NULL,
		end_at       TIMESTAMPTZ NOT NULL,
		capacity     INTEGER NOT NULL CHECK (capacity > 0),
		unit_price   DOUBLE PRECISION NOT NULL CHECK (unit_price >= 0),
		status       TEXT NOT NULL,
		organizer_id TEXT NOT NULL REFERENCES users(id),
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id         TEXT PRIMARY KEY,
		code       TEXT NOT NULL,
		event_id   TEXT NOT NULL REFERENCES events(id),
		user_id    TEXT NOT NULL REFERENCES users(id),
		seats      INTEGER NOT NULL CHECK (seats BETWEEN 1 AND 10),
		amount     DOUBLE PRECISION NOT NULL CHECK (amount >= 0),
		status     TEXT NOT NULL,
		comment    TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS reservations_code_uniq
		ON reservations (code)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS reservations_event_user_active_uniq
		ON reservations (event_id, user_id) WHERE status <> 'CANCELLED'`,
	`CREATE INDEX IF NOT EXISTS reservations_event_idx ON reservations (event_id)`,
	`CREATE INDEX IF NOT EXISTS reservations_user_idx ON reservations (user_id)`,
	`CREATE INDEX IF NOT EXISTS events_organizer_idx ON events (organizer_id)`,
}

func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
