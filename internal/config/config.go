package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/ulogme/config.yaml"

// Config holds all ulogme configuration.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Sampling SamplingConfig `yaml:"sampling"`
	Server   ServerConfig   `yaml:"server"`
	Refresh  RefreshConfig  `yaml:"refresh"`
	History  HistoryConfig  `yaml:"history"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type StorageConfig struct {
	LogDir    string `yaml:"log_dir"`
	RenderDir string `yaml:"render_dir"`
	HistoryDB string `yaml:"history_db"`
}

type SamplingConfig struct {
	EnableWindow    bool          `yaml:"enable_window"`
	EnableKeys      bool          `yaml:"enable_keys"`
	WindowInterval  time.Duration `yaml:"window_interval"`
	KeyfreqWindow   time.Duration `yaml:"keyfreq_window"`
	CommandTimeout  time.Duration `yaml:"command_timeout"`
	DayBoundaryHour int           `yaml:"day_boundary_hour"`
	LockDetection   bool          `yaml:"lock_detection"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type RefreshConfig struct {
	// Schedule is a cron spec; empty disables scheduled refreshes.
	Schedule string        `yaml:"schedule"`
	Timeout  time.Duration `yaml:"timeout"`
}

type HistoryConfig struct {
	RetentionDays int `yaml:"retention_days"`
}

type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values the samplers and the normalizer cannot work with.
func (c *Config) Validate() error {
	if c.Sampling.DayBoundaryHour < 0 || c.Sampling.DayBoundaryHour > 23 {
		return fmt.Errorf("sampling.day_boundary_hour must be in [0, 23], got %d", c.Sampling.DayBoundaryHour)
	}
	if c.Sampling.WindowInterval <= 0 {
		return fmt.Errorf("sampling.window_interval must be positive")
	}
	if c.Sampling.KeyfreqWindow <= 0 {
		return fmt.Errorf("sampling.keyfreq_window must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LogDir returns the expanded raw log directory.
func (c *Config) LogDir() (string, error) {
	return ExpandPath(c.Storage.LogDir)
}

// RenderDir returns the expanded export directory.
func (c *Config) RenderDir() (string, error) {
	return ExpandPath(c.Storage.RenderDir)
}

// HistoryDBPath returns the expanded history database path.
func (c *Config) HistoryDBPath() (string, error) {
	return ExpandPath(c.Storage.HistoryDB)
}

// Addr returns the host:port the control server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}
