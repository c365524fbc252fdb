package config

import "time"

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			LogDir:    "~/.local/share/ulogme/logs",
			RenderDir: "~/.local/share/ulogme/render",
			HistoryDB: "~/.local/share/ulogme/history.db",
		},
		Sampling: SamplingConfig{
			EnableWindow:    true,
			EnableKeys:      true,
			WindowInterval:  2 * time.Second,
			KeyfreqWindow:   10 * time.Second,
			CommandTimeout:  2 * time.Second,
			DayBoundaryHour: 7,
			LockDetection:   true,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8124,
		},
		Refresh: RefreshConfig{
			Schedule: "*/15 * * * *",
			Timeout:  5 * time.Minute,
		},
		History: HistoryConfig{
			RetentionDays: 90,
		},
		Logging: LoggingConfig{
			Level:      "info",
			File:       "",
			MaxSize:    10,
			MaxBackups: 3,
		},
	}
}
