// Package config handles loading and parsing application configuration.
// It supports two sources (in priority order):
//  1. An environment variable:  CONFIG_PATH=/path/to/config.yaml
//  2. A command-line flag:      --config=/path/to/config.yaml
//
// Both binaries (the admin app and the development store) read the same
// file; each one only looks at its own section.
package config

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is the root configuration structure.
// Every field maps to a key in the YAML file AND can be overridden
// by the corresponding environment variable (env:"...").
type Config struct {
	// Env controls log format and verbosity.
	// Valid values: "dev", "staging", "prod"
	Env string `yaml:"env" env:"ENV" env-required:"true"`

	Store Store `yaml:"store"`
	Admin Admin `yaml:"admin"`
}

// Store holds settings for the development student store.
type Store struct {
	// StoragePath is the filesystem path to the SQLite .db file.
	StoragePath string `yaml:"storage_path" env:"STORAGE_PATH" env-default:"storage/students.db"`
	Addr        string `yaml:"address"      env:"STORE_ADDR"   env-default:"localhost:5000"`
}

// Admin holds settings for the admin web app.
type Admin struct {
	Addr string `yaml:"address" env:"ADMIN_ADDR" env-default:"localhost:8080"`

	// StoreURL is the base URL of the Remote Student Store.
	StoreURL string `yaml:"store_url" env:"STORE_URL" env-default:"http://localhost:5000"`

	// StoreTimeout bounds each store request. Zero means no deadline.
	StoreTimeout time.Duration `yaml:"store_timeout" env:"STORE_TIMEOUT" env-default:"0s"`

	SessionKey    string `yaml:"session_key"    env:"SESSION_KEY" env-required:"true"`
	CSRFKey       string `yaml:"csrf_key"       env:"CSRF_KEY"    env-required:"true"`
	SecureCookies bool   `yaml:"secure_cookies" env:"SECURE_COOKIES"`

	// MaxViews and ViewTTL bound the per-tab student views kept in memory.
	MaxViews int           `yaml:"max_views" env:"MAX_VIEWS" env-default:"1000"`
	ViewTTL  time.Duration `yaml:"view_ttl"  env:"VIEW_TTL"  env-default:"30m"`
}

// MustLoad reads, validates, and returns the application config.
// It exits the process if the config cannot be loaded.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")

	if configPath == "" {
		flags := flag.String("config", "", "Path to the configuration YAML file")
		flag.Parse()
		configPath = *flags
	}

	if configPath == "" {
		log.Fatal("config path is not set: use --config flag or CONFIG_PATH env var")
	}

	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err.Error())
	}

	return cfg
}

// Load reads the config file at path, applies env overrides and defaults,
// and checks the values cleanenv cannot.
func Load(path string) (*Config, error) {
	// Verify the file exists before trying to read it so the message is
	// clearer than a bare "open: no such file".
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	// gorilla/csrf wants exactly 32 bytes of key material.
	if len(cfg.Admin.CSRFKey) != 32 {
		return nil, fmt.Errorf("config.Load: csrf_key must be 32 bytes, got %d", len(cfg.Admin.CSRFKey))
	}

	return &cfg, nil
}

// NewLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Production (prod): machine-readable JSON output at INFO level.
func NewLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case "staging":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	default: // "dev" and anything unrecognised
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	}
}
