// Package postgres implements the repository interfaces on PostgreSQL through
// a pgx connection pool.
//
// The schema mirrors the sqlite backend: one row per item, ordered by a
// BIGSERIAL seq. Mutations that must be atomic per list take a
// transaction-scoped advisory lock keyed on the list reference, so appends,
// removals and clears on one list queue up behind each other while other
// lists are untouched.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakif/sharedlist/internal/repository"
)

var _ repository.Store = (*DB)(nil)

// PostgreSQL error codes we translate into domain errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type DB struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL and makes sure the schema exists.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: pinging database: %w", err)
	}

	db := &DB{pool: pool}
	if err := db.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: running migrations: %w", err)
	}
	return db, nil
}

func (db *DB) Close() error {
	db.pool.Close()
	return nil
}

func (db *DB) migrate(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS groups (
			code       TEXT PRIMARY KEY,
			name       TEXT,
			created_by TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);

		CREATE TABLE IF NOT EXISTS group_members (
			seq        BIGSERIAL PRIMARY KEY,
			group_code TEXT NOT NULL REFERENCES groups(code) ON DELETE CASCADE,
			user_id    TEXT NOT NULL,
			joined_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (group_code, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_id, seq);

		CREATE TABLE IF NOT EXISTS group_items (
			seq        BIGSERIAL PRIMARY KEY,
			id         TEXT NOT NULL UNIQUE,
			group_code TEXT NOT NULL REFERENCES groups(code) ON DELETE CASCADE,
			text       TEXT NOT NULL,
			added_by   TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_group_items_code ON group_items(group_code, seq);

		CREATE TABLE IF NOT EXISTS personal_items (
			seq        BIGSERIAL PRIMARY KEY,
			id         TEXT NOT NULL UNIQUE,
			user_id    TEXT NOT NULL,
			text       TEXT NOT NULL,
			added_by   TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_personal_items_user ON personal_items(user_id, seq);
	`)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// withListLock runs fn in a transaction holding the advisory lock for key.
// The lock is released by commit or rollback.
func (db *DB) withListLock(ctx context.Context, key string, fn func(tx pgx.Tx) error) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return fmt.Errorf("postgres: locking %s: %w", key, err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: committing: %w", err)
	}
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
