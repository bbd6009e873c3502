// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	Port           string     `env:"PORT"            envDefault:"8080"`
	FrontendURL    string     `env:"FRONTEND_URL"`
	LogLevel       slog.Level `env:"LOG_LEVEL"       envDefault:"info"`
	DBPath         string     `env:"DB_PATH"         envDefault:"./data/linguapolis.db"`
	CatalogSource  string     `env:"CATALOG_SOURCE"  envDefault:"./data/data.json"`
	AllowedOrigins []string   `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	Media          MediaConfig
	Progression    ProgressionConfig
	ProfileTTL     time.Duration `env:"PROFILE_TTL"    envDefault:"720h"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
}

// MediaConfig controls avatar resolution.
type MediaConfig struct {
	// AssetDir is served under /assets and probed when AssetBaseURL is empty.
	AssetDir     string        `env:"ASSET_DIR"      envDefault:"./public/assets"`
	AssetBaseURL string        `env:"ASSET_BASE_URL"`
	ImageFolders []string      `env:"IMAGE_FOLDERS"  envDefault:"avatars,images" envSeparator:","`
	VideoFolders []string      `env:"VIDEO_FOLDERS"  envDefault:"avatars,videos" envSeparator:","`
	Playable     []string      `env:"PLAYABLE_VIDEO" envDefault:"mp4,webm"       envSeparator:","`
	ProbeTimeout time.Duration `env:"PROBE_TIMEOUT"  envDefault:"3s"`
}

// ProgressionConfig controls the XP curve and persisted slot.
type ProgressionConfig struct {
	XPBase    int    `env:"XP_BASE"          envDefault:"100"`
	XPStep    int    `env:"XP_INCREMENT"     envDefault:"40"`
	DefaultXP int    `env:"DEFAULT_QUEST_XP" envDefault:"35"`
	StateKey  string `env:"STATE_KEY"        envDefault:"linguapolis_state_v1"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.CatalogSource == "" {
		return fmt.Errorf("CATALOG_SOURCE cannot be empty")
	}
	if c.Media.AssetBaseURL == "" && c.Media.AssetDir == "" {
		return fmt.Errorf("one of ASSET_DIR or ASSET_BASE_URL must be set")
	}
	if c.Progression.XPBase <= 0 {
		return fmt.Errorf("XP_BASE must be > 0")
	}
	if c.Progression.XPStep < 0 {
		return fmt.Errorf("XP_INCREMENT must be >= 0")
	}
	if c.Progression.DefaultXP < 0 {
		return fmt.Errorf("DEFAULT_QUEST_XP must be >= 0")
	}
	if strings.TrimSpace(c.Progression.StateKey) == "" {
		return fmt.Errorf("STATE_KEY cannot be empty")
	}
	if c.ProfileTTL <= 0 {
		return fmt.Errorf("PROFILE_TTL must be > 0")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	if appEnv := os.Getenv("APP_ENV"); appEnv != "" {
		return appEnv == "development"
	}
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AssetURLPrefix is the prefix for resolved media URLs.
func (c *Config) AssetURLPrefix() string {
	if c.Media.AssetBaseURL != "" {
		return strings.TrimRight(c.Media.AssetBaseURL, "/")
	}
	return "/assets"
}
