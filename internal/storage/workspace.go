package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Workspace subdirectories created by EnsureLayout.
var workspaceSubdirs = []string{
	filepath.Join("images", "processed"),
	filepath.Join("images", "originals"),
	filepath.Join("images", "backgrounds"),
	"audio",
}

// EnsureLayout creates the workspace directory tree if it does not exist.
func EnsureLayout(dir string) error {
	for _, sub := range workspaceSubdirs {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return fmt.Errorf("create workspace dir %s: %w", sub, err)
		}
	}
	return nil
}

// DBPath returns the database file path inside a workspace directory.
func DBPath(dir string) string {
	return filepath.Join(dir, "nuriemon.db")
}
