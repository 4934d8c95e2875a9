// Package config loads the application configuration: provider credentials,
// model choices and the storage backend. Settings the user tunes at runtime
// (context window, naming prompt, temperature, system instruction) live in
// the session options store instead.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

var (
	ErrNoAPIKey           = errors.New("api_key not set in config or GEMINI_API_KEY environment")
	ErrInvalidJSON        = errors.New("invalid config JSON")
	ErrInvalidStorageMode = errors.New("storage_backend must be \"file\" or \"sqlite\"")
)

// Config holds the global gemchat configuration.
type Config struct {
	APIKey         string `json:"api_key"`
	BaseURL        string `json:"base_url"`
	DefaultModel   string `json:"default_model"`
	NamingModel    string `json:"naming_model"`    // Model for auto-generating chat names (cheap/fast)
	StorageBackend string `json:"storage_backend"` // "file" or "sqlite"
	StoragePath    string `json:"storage_path"`    // Data directory (file) or database file (sqlite)
}

// Load reads the config from ~/.config/gemchat/config.json. A missing file
// is fine: defaults plus the GEMINI_API_KEY environment variable are enough
// to run.
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	configPath := filepath.Join(homeDir, ".config", "gemchat", "config.json")
	return LoadFrom(configPath)
}

// LoadFrom reads the config from a specific path.
func LoadFrom(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, ErrInvalidJSON
		}
	case os.IsNotExist(err):
		// Defaults + environment only
	default:
		return nil, err
	}

	if cfg.APIKey == "" {
		// Best-effort .env pickup, then the environment
		_ = godotenv.Load()
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	// Set defaults
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gemini-2.0-flash"
	}
	if cfg.NamingModel == "" {
		cfg.NamingModel = "gemini-1.5-flash"
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = "file"
	}
	if cfg.StoragePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		if cfg.StorageBackend == "sqlite" {
			cfg.StoragePath = filepath.Join(home, ".gemchat", "gemchat.db")
		} else {
			cfg.StoragePath = filepath.Join(home, ".gemchat", "data")
		}
	}

	switch cfg.StorageBackend {
	case "file", "sqlite":
		// valid
	default:
		return nil, ErrInvalidStorageMode
	}

	return &cfg, nil
}
