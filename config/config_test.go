package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Expected addr 0.0.0.0:8080, got %s", cfg.Server.Addr())
	}
	if cfg.Catalog.Dir != "catalog" {
		t.Errorf("Expected catalog dir 'catalog', got %s", cfg.Catalog.Dir)
	}
	if cfg.Redis.Addr != "" {
		t.Errorf("Expected redis disabled, got %s", cfg.Redis.Addr)
	}
	if cfg.Redis.Channel != "matchbroker:lobby" {
		t.Errorf("Expected default redis channel, got %s", cfg.Redis.Channel)
	}
	if cfg.Matches.Retention != 24*time.Hour {
		t.Errorf("Expected 24h retention, got %v", cfg.Matches.Retention)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	content := `
server:
  port: "9090"
catalog:
  dir: /srv/games
redis:
  addr: localhost:6379
  db: 2
matches:
  retention: 30m
  cleanup_interval: 5m
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadFrom(viper.New(), dir)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected default host, got %s", cfg.Server.Host)
	}
	if cfg.Catalog.Dir != "/srv/games" {
		t.Errorf("Expected /srv/games, got %s", cfg.Catalog.Dir)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Errorf("Unexpected redis config %+v", cfg.Redis)
	}
	if cfg.Matches.Retention != 30*time.Minute {
		t.Errorf("Expected 30m retention, got %v", cfg.Matches.Retention)
	}
	if cfg.Matches.CleanupInterval != 5*time.Minute {
		t.Errorf("Expected 5m cleanup interval, got %v", cfg.Matches.CleanupInterval)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MATCHBROKER_SERVER_PORT", "7070")
	t.Setenv("MATCHBROKER_DEBUG", "true")
	t.Setenv("MATCHBROKER_MATCHES_ARCHIVE_DIR", "/tmp/matches")

	cfg, err := LoadFrom(viper.New(), t.TempDir())
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("Expected port 7070, got %s", cfg.Server.Port)
	}
	if !cfg.Debug {
		t.Error("Expected debug enabled")
	}
	if cfg.Matches.ArchiveDir != "/tmp/matches" {
		t.Errorf("Expected archive dir /tmp/matches, got %s", cfg.Matches.ArchiveDir)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	if _, err := LoadFrom(viper.New(), dir); err == nil {
		t.Error("Expected error for malformed config")
	}
}
