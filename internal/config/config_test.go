package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Ingest.FlushThreshold != 5000 {
		t.Errorf("flush threshold = %d, want 5000", cfg.Ingest.FlushThreshold)
	}
	if cfg.Query.MaxRows != 1000 || cfg.Query.SummarySize != 5 {
		t.Errorf("query defaults = %+v", cfg.Query)
	}
	if cfg.Ingest.AppProtocols["modbus.log"] != "MODBUS" {
		t.Errorf("app protocol defaults = %+v", cfg.Ingest.AppProtocols)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
store:
  path: /srv/inventory.sqlite
ingest:
  flush_threshold: 100
  refresh_interval: 30s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Path != "/srv/inventory.sqlite" {
		t.Errorf("store path = %q", cfg.Store.Path)
	}
	if cfg.Ingest.FlushThreshold != 100 {
		t.Errorf("flush threshold = %d", cfg.Ingest.FlushThreshold)
	}
	if cfg.Ingest.RefreshInterval != "30s" {
		t.Errorf("refresh interval = %q", cfg.Ingest.RefreshInterval)
	}
	// Untouched sections keep their defaults.
	if cfg.API.ListenAddr != ":8080" {
		t.Errorf("listen addr = %q", cfg.API.ListenAddr)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NI_DB_PATH", "/data/override.sqlite")
	t.Setenv("NI_LISTEN_ADDR", ":9090")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Store.Path != "/data/override.sqlite" {
		t.Errorf("store path = %q, env override lost", cfg.Store.Path)
	}
	if cfg.API.ListenAddr != ":9090" {
		t.Errorf("listen addr = %q, env override lost", cfg.API.ListenAddr)
	}
}

func TestLoad_MissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Load should fail for a missing explicit config file")
	}
}
