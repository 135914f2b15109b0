package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the client configuration stored as YAML.
type Config struct {
	Server   string `yaml:"server"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`
	// DateFormat is used when printing dates.
	DateFormat string `yaml:"date_format"`
	// Theme is "auto", "dark" or "light".
	Theme string `yaml:"theme"`
	// RefreshSeconds is the watch recompute interval.
	RefreshSeconds int `yaml:"refresh_seconds"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server:         "https://localhost:8080",
		CertFile:       "client.crt",
		KeyFile:        "client.key",
		CAFile:         "ca.crt",
		DateFormat:     "Jan 2, 2006 15:04",
		Theme:          "auto",
		RefreshSeconds: 60,
	}
}

// DefaultConfigPath is ~/.config/chronos/config.yaml.
func DefaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "chronos", "config.yaml")
}

// LoadConfig reads path over the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.DateFormat == "" {
		cfg.DateFormat = DefaultConfig().DateFormat
	}
	if cfg.RefreshSeconds <= 0 {
		cfg.RefreshSeconds = DefaultConfig().RefreshSeconds
	}
	return cfg, nil
}

// Save writes the configuration to path, creating its directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
