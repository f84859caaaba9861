package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// ChangesConfig holds the backend connection settings.
type ChangesConfig struct {
	URL   string `toml:"url"`
	Token string `toml:"token"`
}

// DashboardConfig holds client behaviour settings.
type DashboardConfig struct {
	Project      string `toml:"project"`
	PollInterval string `toml:"poll_interval"`
	MetricsAddr  string `toml:"metrics_addr"`
	LogFile      string `toml:"log_file"`
	LogLevel     string `toml:"log_level"`
	Strict       bool   `toml:"strict"`
}

// Config holds all changesdeck configuration.
type Config struct {
	Changes   ChangesConfig   `toml:"changes"`
	Dashboard DashboardConfig `toml:"dashboard"`
}

const defaultPollInterval = 5 * time.Second

// PollIntervalOrDefault returns the parsed poll interval, or the default when
// unset or invalid.
func (c Config) PollIntervalOrDefault() time.Duration {
	if c.Dashboard.PollInterval == "" {
		return defaultPollInterval
	}
	d, err := time.ParseDuration(c.Dashboard.PollInterval)
	if err != nil || d <= 0 {
		return defaultPollInterval
	}
	return d
}

// LoadFrom reads configuration from the given TOML file path.
// If the file does not exist, it returns an empty config without error.
// Environment variables always take precedence over file values:
//   - CHANGES_URL              overrides changes.url
//   - CHANGES_TOKEN            overrides changes.token
//   - CHANGESDECK_PROJECT      overrides dashboard.project
//   - CHANGESDECK_METRICS_ADDR overrides dashboard.metrics_addr
//   - CHANGESDECK_LOG_LEVEL    overrides dashboard.log_level
func LoadFrom(path string) (Config, error) {
	var cfg Config
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("decoding %s: %w", path, err)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given .env files into the
// process environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// DefaultConfigPath returns the default path for the changesdeck config file.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return home + "/.config/changesdeck/config.toml"
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CHANGES_URL"); v != "" {
		cfg.Changes.URL = v
	}
	if v := os.Getenv("CHANGES_TOKEN"); v != "" {
		cfg.Changes.Token = v
	}
	if v := os.Getenv("CHANGESDECK_PROJECT"); v != "" {
		cfg.Dashboard.Project = v
	}
	if v := os.Getenv("CHANGESDECK_METRICS_ADDR"); v != "" {
		cfg.Dashboard.MetricsAddr = v
	}
	if v := os.Getenv("CHANGESDECK_LOG_LEVEL"); v != "" {
		cfg.Dashboard.LogLevel = v
	}
}

// Save writes cfg to the given TOML file path, creating parent directories as needed.
// Existing file contents are overwritten. Permissions on the written file are 0600.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("opening config file: %w", err)
	}
	if encErr := toml.NewEncoder(f).Encode(cfg); encErr != nil {
		f.Close()
		return encErr
	}
	return f.Close()
}
