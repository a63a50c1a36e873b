package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingDefaultIsNotAnError(t *testing.T) {
	// Point HOME at an empty temp dir so no real config is picked up.
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load with no config file: %v", err)
	}
	if cfg.PortRangeStart != DefaultPortRangeStart || cfg.PortRangeEnd != DefaultPortRangeEnd {
		t.Errorf("port range = %d-%d, want %d-%d",
			cfg.PortRangeStart, cfg.PortRangeEnd, DefaultPortRangeStart, DefaultPortRangeEnd)
	}
	if cfg.HeartbeatSeconds != DefaultHeartbeatSeconds {
		t.Errorf("heartbeat = %d, want %d", cfg.HeartbeatSeconds, DefaultHeartbeatSeconds)
	}
	if cfg.SessionRetentionHours != DefaultSessionRetentionHours {
		t.Errorf("retention = %d, want %d", cfg.SessionRetentionHours, DefaultSessionRetentionHours)
	}
}

func TestLoadExplicitMissingFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err == nil {
		t.Fatal("expected error for explicitly specified missing config file")
	}
}

func TestLoadParsesValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
workspace = "/tmp/ws"
port_range_start = 9000
port_range_end = 9005
heartbeat_seconds = 2
session_retention_hours = 48
watch_folder = "/tmp/inbox"
mdns_enabled = true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Workspace != "/tmp/ws" {
		t.Errorf("Workspace = %q", cfg.Workspace)
	}
	if cfg.PortRangeStart != 9000 || cfg.PortRangeEnd != 9005 {
		t.Errorf("port range = %d-%d", cfg.PortRangeStart, cfg.PortRangeEnd)
	}
	if cfg.HeartbeatSeconds != 2 {
		t.Errorf("HeartbeatSeconds = %d", cfg.HeartbeatSeconds)
	}
	if cfg.SessionRetentionHours != 48 {
		t.Errorf("SessionRetentionHours = %d", cfg.SessionRetentionHours)
	}
	if cfg.WatchFolder != "/tmp/inbox" {
		t.Errorf("WatchFolder = %q", cfg.WatchFolder)
	}
	if !cfg.MdnsEnabled {
		t.Error("MdnsEnabled should be true")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("port_range_start = [nope"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error for invalid TOML")
	}
}

func TestPartialConfigKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`workspace = "/tmp/ws"`), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PortRangeStart != DefaultPortRangeStart {
		t.Errorf("PortRangeStart = %d, want default %d", cfg.PortRangeStart, DefaultPortRangeStart)
	}
	if cfg.MdnsEnabled {
		t.Error("MdnsEnabled should default to false")
	}
}
