package storage

import (
	"database/sql"
	"fmt"
)

// MovementSettings controls how one image animates on the desktop canvas.
type MovementSettings struct {
	ImageID         string
	MovementType    string  // "walk", "fly", "swim"
	MovementPattern string  // "normal", "zigzag", "bounce", ...
	Speed           float64 // 0.0 to 1.0
	Size            string  // "small", "medium", "large"
	CreatedAt       string  // RFC3339
	UpdatedAt       string  // RFC3339
}

// SaveMovementSettings inserts or updates settings for an image.
// CreatedAt is preserved on update; UpdatedAt is always refreshed.
func (s *Store) SaveMovementSettings(m *MovementSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := nowRFC3339()
	_, err := s.db.Exec(`
		INSERT INTO movement_settings
			(image_id, movement_type, movement_pattern, speed, size, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(image_id) DO UPDATE SET
			movement_type = excluded.movement_type,
			movement_pattern = excluded.movement_pattern,
			speed = excluded.speed,
			size = excluded.size,
			updated_at = excluded.updated_at`,
		m.ImageID, m.MovementType, m.MovementPattern, m.Speed, m.Size, now, now)
	if err != nil {
		return fmt.Errorf("save movement settings %s: %w", m.ImageID, err)
	}
	return nil
}

// GetMovementSettings returns settings for one image, or ErrMovementNotFound.
func (s *Store) GetMovementSettings(imageID string) (*MovementSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m MovementSettings
	err := s.db.QueryRow(`
		SELECT image_id, movement_type, movement_pattern, speed, size, created_at, updated_at
		FROM movement_settings WHERE image_id = ?`, imageID).
		Scan(&m.ImageID, &m.MovementType, &m.MovementPattern, &m.Speed, &m.Size,
			&m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrMovementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get movement settings %s: %w", imageID, err)
	}
	return &m, nil
}

// ListMovementSettings returns settings for all images.
func (s *Store) ListMovementSettings() ([]*MovementSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT image_id, movement_type, movement_pattern, speed, size, created_at, updated_at
		FROM movement_settings`)
	if err != nil {
		return nil, fmt.Errorf("list movement settings: %w", err)
	}
	defer rows.Close()

	var result []*MovementSettings
	for rows.Next() {
		var m MovementSettings
		if err := rows.Scan(&m.ImageID, &m.MovementType, &m.MovementPattern,
			&m.Speed, &m.Size, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan movement settings: %w", err)
		}
		result = append(result, &m)
	}
	return result, rows.Err()
}
