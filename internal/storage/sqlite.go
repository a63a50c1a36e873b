// Package storage provides the workspace metadata store.
//
// A workspace is a directory holding the SQLite database plus the imported
// image and audio files. The store records metadata for every file (the
// files themselves stay on disk) along with per-image movement settings and
// app-level key/value settings.
package storage

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	// SQLite driver - imported for side effects (registers the driver).
	// Using modernc.org/sqlite which is a pure-Go implementation that
	// doesn't require CGO, making cross-compilation and testing easier.
	"database/sql"

	_ "modernc.org/sqlite"
)

// ErrImageNotFound is returned when an image metadata lookup fails.
var ErrImageNotFound = errors.New("image not found")

// ErrMovementNotFound is returned when a movement settings lookup fails.
var ErrMovementNotFound = errors.New("movement settings not found")

// ErrSettingNotFound is returned when an app setting lookup fails.
var ErrSettingNotFound = errors.New("setting not found")

// Store persists workspace metadata in SQLite.
// It creates the database and tables on first use and supports
// concurrent access through internal locking.
type Store struct {
	db *sql.DB      // Database connection handle.
	mu sync.RWMutex // Guards all database operations for thread safety.
}

// Open opens or creates a SQLite database at the given path.
// It initializes the schema if the tables don't exist.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(path string) (*Store, error) {
	log.Printf("storage: opening database at %s", path)

	// Open database with foreign keys enabled for referential integrity.
	// The modernc.org/sqlite driver uses _pragma=foreign_keys(1) syntax.
	// busy_timeout handles concurrent access from the watcher goroutine
	// and HTTP handlers.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection only: an in-memory database exists per connection, so
	// a second pooled connection would see an empty schema.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.Printf("storage: database ready (schema version %d)", currentSchemaVersion)
	return store, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	log.Printf("storage: closing database")
	return s.db.Close()
}

// nowRFC3339 formats the current time the way all timestamps are stored.
func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
