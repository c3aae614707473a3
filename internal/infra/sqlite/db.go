// Package sqlite provides the durable local store beneath the ledger.
// Schema: a single user profile row, a single daily stats row, an
// append-only transaction history, and a small key-value table for the
// device id and session flag.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	db *sql.DB
}

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Single-row user profile (id is always 1)
		`CREATE TABLE IF NOT EXISTS user_profile (
			id            INTEGER PRIMARY KEY CHECK (id = 1),
			email         TEXT NOT NULL,
			device_id     TEXT NOT NULL DEFAULT '',
			coins         INTEGER NOT NULL DEFAULT 0 CHECK (coins >= 0),
			is_new_user   INTEGER NOT NULL DEFAULT 0,
			signup_date   TEXT NOT NULL,
			last_check_in TEXT NOT NULL DEFAULT ''
		)`,

		// Single-row daily quota counters (id is always 1)
		`CREATE TABLE IF NOT EXISTS daily_stats (
			id             INTEGER PRIMARY KEY CHECK (id = 1),
			date           TEXT NOT NULL,
			scratches_used INTEGER NOT NULL DEFAULT 0,
			spins_used     INTEGER NOT NULL DEFAULT 0,
			coins_earned   INTEGER NOT NULL DEFAULT 0
		)`,

		// Append-only transaction history; seq orders entries, newest first
		`CREATE TABLE IF NOT EXISTS transactions (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			id         TEXT NOT NULL UNIQUE,
			kind       TEXT NOT NULL,
			amount     INTEGER NOT NULL,
			coin_cost  INTEGER NOT NULL DEFAULT 0,
			status     TEXT NOT NULL,
			title      TEXT NOT NULL,
			channel    TEXT NOT NULL DEFAULT '',
			details    TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_status ON transactions(kind, status)`,

		// Device id, session flag, and similar one-off values
		`CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
}

// Open opens (or creates) the ledger database at path and applies migrations.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Serialized writes; WAL keeps synchronous persists cheap.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// OpenMemory opens an in-memory database (tests, local mode).
func OpenMemory() (*DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying connection.
func (d *DB) Close() error { return d.db.Close() }

func (d *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
