// Package config provides TOML configuration file loading and parsing for the
// companion service. The configuration file lives at ~/.nuriemon/config.toml by
// default, but can be overridden with the --config flag. CLI flags always take
// precedence over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the companion configuration file structure.
// Field names use Go camelCase internally but map to snake_case in TOML files.
type Config struct {
	// Workspace is the directory holding the metadata database and imported
	// image files. If empty, defaults to ~/.nuriemon/workspace.
	Workspace string `toml:"workspace"`

	// PortRangeStart and PortRangeEnd bound the port scan for the HTTP front
	// door. The first bindable port in [start, end] wins.
	// Defaults: 8080 and 8090.
	PortRangeStart int `toml:"port_range_start"`
	PortRangeEnd   int `toml:"port_range_end"`

	// HeartbeatSeconds is the WebSocket liveness ping interval. A connection
	// silent for more than twice this interval is closed. Default: 5.
	HeartbeatSeconds int `toml:"heartbeat_seconds"`

	// SessionRetentionHours is how long unclaimed pairing sessions are kept
	// before the registry sweeps them. There is no shorter per-session
	// expiry; a QR stays scannable for the whole window. Default: 24.
	SessionRetentionHours int `toml:"session_retention_hours"`

	// WatchFolder, when set, is watched for new image files which are
	// auto-imported into the workspace.
	WatchFolder string `toml:"watch_folder"`

	// MdnsEnabled enables mDNS/Bonjour service advertisement.
	// When true, the companion advertises itself on the local network,
	// allowing phones to discover it without manual IP entry.
	// Default: false (disabled - must be explicitly enabled)
	MdnsEnabled bool `toml:"mdns_enabled"`

	// LogFile is the path for log output. Empty means stderr.
	LogFile string `toml:"log_file"`
}

// DefaultConfigPath returns the default config file location: ~/.nuriemon/config.toml.
// Returns an error only if the user's home directory cannot be determined.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".nuriemon", "config.toml"), nil
}

// DefaultWorkspace returns the default workspace directory: ~/.nuriemon/workspace.
func DefaultWorkspace() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".nuriemon", "workspace"), nil
}

// Load reads a TOML config file from the given path and returns a Config
// with defaults applied.
//
// Behavior:
//   - If path is empty, attempts to load from the default location.
//     Returns a default Config without error if the default file doesn't exist.
//   - If path is specified, returns an error if the file doesn't exist.
//   - Returns an error if the file exists but cannot be parsed.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path == "" {
		// No explicit path: try default location, but don't error if missing.
		// This allows the companion to start without any config file.
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			cfg.applyDefaults()
			return cfg, nil
		}
		if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
			cfg.applyDefaults()
			return cfg, nil
		}
		path = defaultPath
	} else {
		// Explicit path provided: error if file doesn't exist.
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
	}

	// Parse the TOML file. Any parse error is fatal since the user expects
	// the config to be applied.
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills zero-valued fields with their documented defaults.
func (c *Config) applyDefaults() {
	if c.PortRangeStart == 0 {
		c.PortRangeStart = DefaultPortRangeStart
	}
	if c.PortRangeEnd == 0 {
		c.PortRangeEnd = DefaultPortRangeEnd
	}
	if c.HeartbeatSeconds == 0 {
		c.HeartbeatSeconds = DefaultHeartbeatSeconds
	}
	if c.SessionRetentionHours == 0 {
		c.SessionRetentionHours = DefaultSessionRetentionHours
	}
}
