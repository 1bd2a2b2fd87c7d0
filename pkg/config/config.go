package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"itvhub/pkg/env"
	"itvhub/pkg/logger"
	"itvhub/pkg/paths"
)

// Config holds application configuration
type Config struct {
	// Addon settings
	LogLevel string `json:"log_level"`

	// HTTP settings
	RequestTimeoutSeconds int `json:"request_timeout_seconds"`

	// Account settings. Credentials can be placed here for unattended
	// logins, but the ITV_USERNAME/ITV_PASSWORD environment variables win.
	Username string `json:"username"`
	Password string `json:"password"`

	// LoadedPath is where the config was read from (not serialized)
	LoadedPath string `json:"-"`
}

// Load reads config.json from the data directory, creating it with defaults
// when missing, then applies environment overrides and saves the merged
// result back.
func Load() (*Config, error) {
	dataDir := paths.GetDataDir()
	configPath := filepath.Join(dataDir, "config.json")

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		logger.Warn("Failed to create data directory", "dir", dataDir, "err", err)
	}

	cfg := &Config{
		LogLevel:              "INFO",
		RequestTimeoutSeconds: 30,
		LoadedPath:            configPath,
	}

	if err := cfg.LoadFile(configPath); err != nil {
		if os.IsNotExist(err) {
			logger.Info("No config found, creating new one", "path", configPath)
		} else {
			logger.Warn("Failed to load config, using defaults", "path", configPath, "err", err)
		}
	} else {
		logger.Info("Loaded configuration", "path", configPath)
	}

	// Override with environment variables (single source: pkg/env)
	if v := os.Getenv(env.LOGLevel); v != "" {
		cfg.LogLevel = v
		logger.Info("Config value overridden by environment", "key", env.KeyLogLevel)
	}
	if v := env.GetInt(env.RequestTimeoutSeconds, 0); v > 0 {
		cfg.RequestTimeoutSeconds = v
		logger.Info("Config value overridden by environment", "key", env.KeyRequestTimeout)
	}
	cfg.Username = env.GetString(env.ITVUsername, cfg.Username)
	cfg.Password = env.GetString(env.ITVPassword, cfg.Password)

	if err := cfg.Save(); err != nil {
		logger.Warn("Failed to save config on startup", "err", err)
	}

	return cfg, nil
}

// LoadFile overrides config with values from a JSON file
func (c *Config) LoadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return json.NewDecoder(file).Decode(c)
}

// Save writes the config back to the path it was loaded from
func (c *Config) Save() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.LoadedPath, data, 0644)
}
