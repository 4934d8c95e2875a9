package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFromDefaults(t *testing.T) {
	path := writeConfig(t, `{"api_key": "test-key"}`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}

	if cfg.APIKey != "test-key" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "test-key")
	}
	if cfg.BaseURL != "https://generativelanguage.googleapis.com/v1beta" {
		t.Errorf("BaseURL = %q, want the generative language endpoint", cfg.BaseURL)
	}
	if cfg.DefaultModel != "gemini-2.0-flash" {
		t.Errorf("DefaultModel = %q, want %q", cfg.DefaultModel, "gemini-2.0-flash")
	}
	if cfg.NamingModel != "gemini-1.5-flash" {
		t.Errorf("NamingModel = %q, want %q", cfg.NamingModel, "gemini-1.5-flash")
	}
	if cfg.StorageBackend != "file" {
		t.Errorf("StorageBackend = %q, want %q", cfg.StorageBackend, "file")
	}
	if cfg.StoragePath == "" {
		t.Error("expected a default storage path")
	}
}

func TestLoadFromMissingFileUsesEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "env-key")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if cfg.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want %q", cfg.APIKey, "env-key")
	}
}

func TestLoadFromNoAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("expected ErrNoAPIKey, got %v", err)
	}
}

func TestLoadFromInvalidJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)

	_, err := LoadFrom(path)
	if !errors.Is(err, ErrInvalidJSON) {
		t.Errorf("expected ErrInvalidJSON, got %v", err)
	}
}

func TestLoadFromInvalidStorageBackend(t *testing.T) {
	path := writeConfig(t, `{"api_key": "k", "storage_backend": "redis"}`)

	_, err := LoadFrom(path)
	if !errors.Is(err, ErrInvalidStorageMode) {
		t.Errorf("expected ErrInvalidStorageMode, got %v", err)
	}
}

func TestLoadFromSQLiteDefaultPath(t *testing.T) {
	path := writeConfig(t, `{"api_key": "k", "storage_backend": "sqlite"}`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if filepath.Ext(cfg.StoragePath) != ".db" {
		t.Errorf("StoragePath = %q, want a .db file", cfg.StoragePath)
	}
}
