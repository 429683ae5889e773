package config

import (
	"strings"
	"time"

	"github.com/onlinetalk/onlinetalk/internal/bytesize"
	"github.com/onlinetalk/onlinetalk/pkg/chat/store"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields. Zero values are replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	if cfg.ThreadPoolSize == 0 {
		cfg.ThreadPoolSize = 4
	}
	if cfg.MaxClients == 0 {
		cfg.MaxClients = 1000
	}
	if cfg.HistoryPageSize == 0 {
		cfg.HistoryPageSize = 100
	}
	if cfg.FileChunkSize == 0 {
		cfg.FileChunkSize = 64 * 1024
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.WriteQueueMax == 0 {
		cfg.WriteQueueMax = 4 * bytesize.MiB
	}

	applyDatabaseDefaults(cfg)
	applyMetricsDefaults(&cfg.Metrics)
	applyAPIDefaults(cfg)
}

// applyDatabaseDefaults wires the flat db_path key into the SQLite
// backend and fills in backend defaults.
func applyDatabaseDefaults(cfg *Config) {
	if cfg.Database.Type == "" {
		cfg.Database.Type = store.DatabaseTypeSQLite
	}
	if cfg.Database.Type == store.DatabaseTypeSQLite && cfg.Database.SQLite.Path == "" {
		cfg.Database.SQLite.Path = cfg.DBPath
	}
	cfg.Database.ApplyDefaults()
}

// applyMetricsDefaults sets metrics defaults.
// Metrics are opt-in; the port defaults to 9090 when enabled.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyAPIDefaults sets health/status API server defaults.
func applyAPIDefaults(cfg *Config) {
	if cfg.API.Enabled && cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
	if cfg.API.ReadTimeout == 0 {
		cfg.API.ReadTimeout = 10 * time.Second
	}
	if cfg.API.WriteTimeout == 0 {
		cfg.API.WriteTimeout = 10 * time.Second
	}
	if cfg.API.IdleTimeout == 0 {
		cfg.API.IdleTimeout = 60 * time.Second
	}
}

// GetDefaultConfig returns a Config with all default values applied.
//
// This is what 'onlinetalkd init' writes out as a starting point; the
// required fields get local-development values the operator is expected
// to adjust.
func GetDefaultConfig() *Config {
	cfg := &Config{
		BindHost: "0.0.0.0",
		Port:     7777,
		DataDir:  "data",
		DBPath:   "data/onlinetalk.db",
	}

	ApplyDefaults(cfg)
	return cfg
}
