// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of SQLite: no C compiler needed, it builds wherever Go builds.
//
// LAYOUT:
// Items are stored one row per item (group_items, personal_items) rather than
// as one serialized document per list. An append is a single INSERT and a
// removal is a single DELETE, so two users writing to the same list never
// overwrite each other's whole list.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	// The driver registers itself with database/sql as "sqlite". We also use
	// its Error type to recognise constraint violations.
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/sharedlist/internal/repository"
)

// compile-time check that *DB implements the full store
var _ repository.Store = (*DB)(nil)

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/lists.db"  → file-based database (persistent)
//   - ":memory:"       → in-memory database (great for tests, lost on close)
//
// ONE CONNECTION:
// The pool is capped at a single connection. SQLite serializes writers
// anyway, and with one connection every statement runs in order instead of
// failing with SQLITE_BUSY under concurrent appends. It also keeps a
// ":memory:" database alive and shared across calls, since every new
// connection to ":memory:" would otherwise see an empty database.
func New(dbPath string) (*DB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("sqlite: creating database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	// Ping forces the first real connection so a bad path fails here and not
	// on the first chat message.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// dsn appends the connection pragmas to dbPath.
//
// PRAGMAS LIVE IN THE DSN:
// foreign_keys and busy_timeout are per-connection settings. Run once with
// Exec, they would only apply to the connection that happened to run them;
// if database/sql ever replaced it, the new one would come up with foreign
// keys OFF. modernc applies every _pragma to each connection it opens.
//
//   - journal_mode(WAL): readers proceed while a write is in progress.
//   - foreign_keys(1): OFF by default in SQLite; items and memberships must
//     point at an existing group.
//   - busy_timeout(5000): wait for a lock instead of failing at once.
func dsn(dbPath string) string {
	return dbPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate runs all database migrations.
//
// CREATE TABLE IF NOT EXISTS is safe to run on every start. Columns added
// after the first release go through addColumnIfNotExists so old database
// files pick them up.
func (db *DB) migrate() error {
	// groups: the first schema had no name column, so a group was known only
	// by its join code. name is added below and stays nullable for those rows.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS groups (
			code       TEXT PRIMARY KEY,
			created_by TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating groups table: %w", err)
	}

	if err := db.addColumnIfNotExists("groups", "name", "TEXT"); err != nil {
		return fmt.Errorf("adding name to groups: %w", err)
	}

	// seq gives each table a strictly increasing insertion order. AUTOINCREMENT
	// guarantees a deleted seq is never handed out again, so "first
	// occurrence" always means "oldest surviving row".
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS group_members (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			group_code TEXT NOT NULL REFERENCES groups(code) ON DELETE CASCADE,
			user_id    TEXT NOT NULL,
			joined_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (group_code, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_id, seq);
	`)
	if err != nil {
		return fmt.Errorf("creating group_members table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS group_items (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			group_code TEXT NOT NULL REFERENCES groups(code) ON DELETE CASCADE,
			text       TEXT NOT NULL,
			added_by   TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_group_items_code ON group_items(group_code, seq);
	`)
	if err != nil {
		return fmt.Errorf("creating group_items table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS personal_items (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			user_id    TEXT NOT NULL,
			text       TEXT NOT NULL,
			added_by   TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_personal_items_user ON personal_items(user_id, seq);
	`)
	if err != nil {
		return fmt.Errorf("creating personal_items table: %w", err)
	}

	return nil
}

// addColumnIfNotExists adds a column to a table only if it doesn't already exist.
// Makes ALTER TABLE migrations idempotent, so they can run on every start.
func (db *DB) addColumnIfNotExists(table, column, definition string) error {
	var count int
	err := db.conn.QueryRow(
		`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`,
		table, column,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if count > 0 {
		return nil // column already exists
	}
	_, err = db.conn.Exec(fmt.Sprintf(
		`ALTER TABLE %s ADD COLUMN %s %s`, table, column, definition,
	))
	return err
}

// constraint classifies a constraint violation reported by the driver.
// Extended result codes are checked first; a bare SQLITE_CONSTRAINT falls
// back to the message text.
func constraint(err error) string {
	var sqlErr *sqlitedrv.Error
	if !errors.As(err, &sqlErr) {
		return ""
	}
	switch sqlErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return "unique"
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return "foreign_key"
	}
	if sqlErr.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return ""
	}
	msg := sqlErr.Error()
	switch {
	case strings.Contains(msg, "FOREIGN KEY"):
		return "foreign_key"
	case strings.Contains(msg, "UNIQUE"):
		return "unique"
	}
	return ""
}

func isUniqueViolation(err error) bool {
	return constraint(err) == "unique"
}

func isForeignKeyViolation(err error) bool {
	return constraint(err) == "foreign_key"
}
