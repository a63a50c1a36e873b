package storage

import (
	"fmt"
	"log"
)

// currentSchemaVersion is the current database schema version.
// Increment this when making schema changes and add migration logic.
const currentSchemaVersion = 2

// initSchema creates the required tables if they don't exist.
// Uses IF NOT EXISTS to make the operation idempotent.
func (s *Store) initSchema() error {
	// Schema version table tracks database migrations.
	const schemaVersionTable = `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL
		);
	`

	if _, err := s.db.Exec(schemaVersionTable); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("check schema version: %w", err)
	}

	if version < 1 {
		if err := s.migrateToV1(); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	if version < 2 {
		if err := s.migrateToV2(); err != nil {
			return fmt.Errorf("migrate to v2: %w", err)
		}
	}

	return nil
}

// migrateToV1 creates the initial schema: image metadata, per-image
// movement settings, and app-level key/value settings.
func (s *Store) migrateToV1() error {
	log.Printf("storage: applying migration to schema version 1")

	// Timestamps are stored as RFC3339 strings for readability and portability.
	const tables = `
		CREATE TABLE IF NOT EXISTS images (
			id TEXT PRIMARY KEY,
			original_file_name TEXT NOT NULL,
			saved_file_name TEXT NOT NULL,
			image_type TEXT NOT NULL,
			created_at TEXT NOT NULL,
			size INTEGER NOT NULL,
			width INTEGER,
			height INTEGER,
			storage_location TEXT NOT NULL
		);

		-- Index for gallery listing (newest first) and type filtering.
		CREATE INDEX IF NOT EXISTS idx_images_created_at ON images (created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_images_type ON images (image_type);

		CREATE TABLE IF NOT EXISTS movement_settings (
			image_id TEXT PRIMARY KEY,
			movement_type TEXT NOT NULL,
			movement_pattern TEXT NOT NULL,
			speed REAL NOT NULL,
			size TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY (image_id) REFERENCES images(id) ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS app_settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`

	if _, err := s.db.Exec(tables); err != nil {
		return fmt.Errorf("create v1 tables: %w", err)
	}

	return s.recordVersion(1)
}

// migrateToV2 adds columns introduced after the initial release: the full
// file path (older rows resolve by convention), a hidden flag, and the
// display start timestamp.
func (s *Store) migrateToV2() error {
	log.Printf("storage: applying migration to schema version 2")

	stmts := []string{
		`ALTER TABLE images ADD COLUMN file_path TEXT`,
		`ALTER TABLE images ADD COLUMN is_hidden INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE images ADD COLUMN display_started_at TEXT`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("apply %q: %w", stmt, err)
		}
	}

	return s.recordVersion(2)
}

// recordVersion marks a migration as applied.
func (s *Store) recordVersion(version int) error {
	_, err := s.db.Exec(
		"INSERT INTO schema_version (version, applied_at) VALUES (?, ?)",
		version, nowRFC3339())
	if err != nil {
		return fmt.Errorf("record schema version %d: %w", version, err)
	}
	return nil
}
