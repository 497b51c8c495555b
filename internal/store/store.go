// Package store provides the local key-value persistence adapter. Records
// are opaque JSON blobs stored under fixed keys in a single sqlite file;
// the store is single-writer, single-process.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrUnavailable reports that a persistence write failed. Callers treat it
// as non-fatal: in-memory state stays usable.
var ErrUnavailable = errors.New("persistence unavailable")

// Store wraps the sqlite-backed key-value table
type Store struct {
	db *sql.DB
}

// New opens (or creates) the store at path and initializes the schema
func New(path string) (*Store, error) {
	// Enable WAL mode and a busy timeout for write contention
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // single writer
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Save serializes value to JSON and stores it under key. Writes are
// synchronous: a completed Save is visible to any subsequent Load.
func (s *Store) Save(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: failed to serialize %q: %v", ErrUnavailable, key, err)
	}

	query := `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, key, string(data)); err != nil {
		return fmt.Errorf("%w: failed to write %q: %v", ErrUnavailable, key, err)
	}

	return nil
}

// Load deserializes the record under key into dest. A missing key returns
// (false, nil). A record that fails to deserialize is treated as absent
// and the corrupted row is removed; parse failures never reach the caller.
func (s *Store) Load(ctx context.Context, key string, dest interface{}) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %q: %w", key, err)
	}

	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		// Corrupted record: discard it and report absent
		s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
		return false, nil
	}

	return true, nil
}

// Delete removes the record under key; no-op if absent
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("%w: failed to delete %q: %v", ErrUnavailable, key, err)
	}
	return nil
}
