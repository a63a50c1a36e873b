package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
)

// ImageMetadata describes one imported file (image or audio).
// The file itself lives on disk under the workspace; the store records
// where and what it is.
type ImageMetadata struct {
	ID               string
	OriginalFileName string
	SavedFileName    string
	ImageType        string // "original", "processed", "background", "bgm", "sound_effect"
	CreatedAt        string // RFC3339
	Size             int64
	Width            *int
	Height           *int
	StorageLocation  string // workspace root the file was saved under
	FilePath         string // full path; empty for rows predating the column
	IsHidden         bool
	DisplayStartedAt string // RFC3339; empty until first displayed
}

// SaveImage inserts or replaces image metadata.
func (s *Store) SaveImage(meta *ImageMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO images
			(id, original_file_name, saved_file_name, image_type, created_at,
			 size, width, height, storage_location, file_path, is_hidden, display_started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.ID, meta.OriginalFileName, meta.SavedFileName, meta.ImageType,
		meta.CreatedAt, meta.Size, meta.Width, meta.Height, meta.StorageLocation,
		nullable(meta.FilePath), boolToInt(meta.IsHidden), nullable(meta.DisplayStartedAt))
	if err != nil {
		return fmt.Errorf("save image %s: %w", meta.ID, err)
	}
	return nil
}

// GetImage returns metadata for one image, or ErrImageNotFound.
func (s *Store) GetImage(id string) (*ImageMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, original_file_name, saved_file_name, image_type, created_at,
		       size, width, height, storage_location, file_path, is_hidden, display_started_at
		FROM images WHERE id = ?`, id)
	return scanImage(row)
}

// ListImages returns all image metadata, newest first.
func (s *Store) ListImages() ([]*ImageMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, original_file_name, saved_file_name, image_type, created_at,
		       size, width, height, storage_location, file_path, is_hidden, display_started_at
		FROM images ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var result []*ImageMetadata
	for rows.Next() {
		meta, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, meta)
	}
	return result, rows.Err()
}

// DeleteImage removes image metadata. Movement settings cascade.
func (s *Store) DeleteImage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM images WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete image %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrImageNotFound
	}
	return nil
}

// MarkDisplayStartedIfNull stamps the first time an image is shown.
// Subsequent calls are no-ops, keeping the original timestamp.
func (s *Store) MarkDisplayStartedIfNull(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE images SET display_started_at = ?
		WHERE id = ? AND display_started_at IS NULL`,
		nowRFC3339(), id)
	if err != nil {
		return fmt.Errorf("mark display started %s: %w", id, err)
	}
	return nil
}

// ResolvePath returns the full path of the backing file for meta.
// Newer rows carry an explicit file path; older rows resolve by convention
// from the storage location, the file type's subdirectory, and the saved
// file name.
func ResolvePath(meta *ImageMetadata) string {
	if meta.FilePath != "" {
		return meta.FilePath
	}

	var subdir string
	switch meta.ImageType {
	case "original":
		subdir = filepath.Join("images", "originals")
	case "background":
		subdir = filepath.Join("images", "backgrounds")
	case "bgm", "sound_effect", "soundEffect":
		subdir = "audio"
	default: // "processed" and anything unrecognized
		subdir = filepath.Join("images", "processed")
	}
	return filepath.Join(meta.StorageLocation, subdir, meta.SavedFileName)
}

// scanner abstracts sql.Row and sql.Rows for scanImage.
type scanner interface {
	Scan(dest ...any) error
}

func scanImage(row scanner) (*ImageMetadata, error) {
	var meta ImageMetadata
	var filePath, displayStartedAt sql.NullString
	var isHidden int

	err := row.Scan(&meta.ID, &meta.OriginalFileName, &meta.SavedFileName,
		&meta.ImageType, &meta.CreatedAt, &meta.Size, &meta.Width, &meta.Height,
		&meta.StorageLocation, &filePath, &isHidden, &displayStartedAt)
	if err == sql.ErrNoRows {
		return nil, ErrImageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan image: %w", err)
	}

	meta.FilePath = filePath.String
	meta.IsHidden = isHidden != 0
	meta.DisplayStartedAt = displayStartedAt.String
	return &meta, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
