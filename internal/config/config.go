// Package config loads newsterm settings from the user config dir, with
// sane defaults and environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	History HistoryConfig `mapstructure:"history"`
	Log     LogConfig     `mapstructure:"log"`
}

type BackendConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// HealthURL is the probe target used for connectivity checks.
func (c BackendConfig) HealthURL() string {
	return strings.TrimRight(c.URL, "/") + "/health"
}

type HistoryConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Path        string        `mapstructure:"path"`
	MaxMessages int           `mapstructure:"max_messages"`
	MaxAgeDays  int           `mapstructure:"max_age_days"`
	IdleExpiry  time.Duration `mapstructure:"idle_expiry"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

func Load() (*Config, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(configDir, "newsterm"))
	v.AddConfigPath(".")

	// Set defaults
	v.SetDefault("backend.url", "http://localhost:8000")
	v.SetDefault("backend.timeout", "30s")
	v.SetDefault("history.enabled", true)
	v.SetDefault("history.max_messages", 100)
	v.SetDefault("history.max_age_days", 7)
	v.SetDefault("history.idle_expiry", "24h")
	v.SetDefault("log.level", "info")

	v.BindEnv("backend.url", "NEWSTERM_BACKEND_URL")
	v.BindEnv("log.level", "NEWSTERM_LOG_LEVEL")

	// Read config file (optional - won't error if missing)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Expand environment variables in the backend URL
	cfg.Backend.URL = expandEnv(cfg.Backend.URL)

	return &cfg, nil
}

// expandEnv expands ${VAR} or $VAR in a string.
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

// Path returns where the config file should be located.
func Path() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "newsterm", "config.yaml"), nil
}

// Exists returns true if a config file exists.
func Exists() bool {
	path, err := Path()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// NeedsSetup returns true if no config file has been written yet.
func NeedsSetup() bool {
	return !Exists()
}

// Save writes the config to disk.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`backend:
  url: %s
  timeout: %s

history:
  enabled: %t
  max_messages: %d
  max_age_days: %d
  idle_expiry: %s

log:
  level: %s
`, cfg.Backend.URL, cfg.Backend.Timeout, cfg.History.Enabled,
		cfg.History.MaxMessages, cfg.History.MaxAgeDays, cfg.History.IdleExpiry,
		cfg.Log.Level)

	return os.WriteFile(path, []byte(content), 0600)
}
