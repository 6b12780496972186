package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/evermind-ai/evermind/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BrokerURL != "ws://localhost:8765/ws" {
		t.Errorf("broker_url default: %q", cfg.BrokerURL)
	}
	if cfg.Store.Backend != "chromem" {
		t.Errorf("store backend default: %q", cfg.Store.Backend)
	}
	if !cfg.DelegateExplanations {
		t.Error("delegate_explanations should default to true")
	}
	if cfg.SharedStore() {
		t.Error("chromem is process-local, SharedStore must be false")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("EVERMIND_STORE_BACKEND", "pgvector")
	t.Setenv("EVERMIND_LOG_LEVEL", "debug")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Store.Backend != "pgvector" {
		t.Errorf("env override lost: %q", cfg.Store.Backend)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("env override lost: %q", cfg.LogLevel)
	}
	if !cfg.SharedStore() {
		t.Error("pgvector is shared, SharedStore must be true")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	contents := "http_addr: \":9090\"\nstore:\n  cache_entries: 0\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("file value lost: %q", cfg.HTTPAddr)
	}
	if cfg.Store.CacheEntries != 0 {
		t.Errorf("file value lost: %d", cfg.Store.CacheEntries)
	}
	// Unset keys keep their defaults.
	if cfg.DataDir != "./data" {
		t.Errorf("data_dir default lost: %q", cfg.DataDir)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
