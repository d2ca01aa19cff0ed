// Package sqlite implements the repository interfaces on a SQLite file.
//
// The same DB wrapper serves both programs:
//   - the client opens its own file (data/client.db) and only touches the
//     key/value table through Credentials()
//   - the development backend opens data/backend.db and uses Users() and Wallets()
//
// The driver is modernc.org/sqlite (pure Go, no cgo), so the client binary
// cross-compiles.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and hands out the table-specific stores.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
//
// dbPath examples:
//   - "data/client.db" → file-based database (persistent)
//   - ":memory:"       → in-memory database (tests)
//
// ONE CONNECTION:
// An in-memory SQLite database is private to the connection that created it,
// and SQLite serialises writers anyway. Capping the pool at one connection
// keeps ":memory:" databases coherent and costs nothing for our load.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	// Ping forces a real connection so a bad path fails here, not on the
	// first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Credentials returns the client-side token store.
func (db *DB) Credentials() *CredentialDB {
	return &CredentialDB{conn: db.conn}
}

// Users returns the backend user repository.
func (db *DB) Users() *UserDB {
	return &UserDB{conn: db.conn}
}

// Wallets returns the backend wallet repository.
func (db *DB) Wallets() *WalletDB {
	return &WalletDB{conn: db.conn}
}

// migrate creates every table. CREATE TABLE IF NOT EXISTS makes it safe to run
// on each start.
func (db *DB) migrate() error {
	// kv mirrors browser localStorage: string keys, raw string values, no envelope.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating kv table: %w", err)
	}

	// email is stored lower-cased; UNIQUE gives us duplicate-signup detection.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			full_name     TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL,
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS wallets (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id),
			currency   TEXT NOT NULL,
			balance    REAL NOT NULL DEFAULT 0,
			address    TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_wallets_user_id ON wallets(user_id);
	`)
	if err != nil {
		return fmt.Errorf("creating wallets table: %w", err)
	}

	return nil
}
