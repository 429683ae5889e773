// Package config loads and validates the OnlineTalk server configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (ONLINETALK_*)
//  2. Configuration file (JSON or YAML)
//  3. Default values
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/onlinetalk/onlinetalk/internal/bytesize"
	"github.com/onlinetalk/onlinetalk/pkg/api"
	"github.com/onlinetalk/onlinetalk/pkg/chat/store"
)

// Config represents the OnlineTalk server configuration.
//
// The core keys (bind_host, port, data_dir, db_path and the tuning knobs)
// are deliberately flat so a minimal JSON config file stays minimal.
// Optional subsystems (metrics, api, database backend selection) live in
// their own sections.
type Config struct {
	// BindHost is the address the chat listener binds to.
	BindHost string `mapstructure:"bind_host" validate:"required" yaml:"bind_host" json:"bind_host"`

	// Port is the TCP port for the chat listener.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535" yaml:"port" json:"port"`

	// DataDir is the storage root for uploaded files. Created if absent.
	DataDir string `mapstructure:"data_dir" validate:"required" yaml:"data_dir" json:"data_dir"`

	// DBPath is the SQLite database file path. Ignored when the database
	// section selects postgres.
	DBPath string `mapstructure:"db_path" yaml:"db_path" json:"db_path"`

	// LogLevel is the minimum log level: debug, info, warn, error.
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error" yaml:"log_level" json:"log_level"`

	// LogFormat selects the log output format: text or json.
	LogFormat string `mapstructure:"log_format" validate:"required,oneof=text json" yaml:"log_format" json:"log_format"`

	// ThreadPoolSize is advisory sizing for background work (hashing,
	// spool drains). Connection handling is not bounded by it.
	ThreadPoolSize int `mapstructure:"thread_pool_size" validate:"gt=0" yaml:"thread_pool_size" json:"thread_pool_size"`

	// MaxClients caps concurrent client connections.
	MaxClients int `mapstructure:"max_clients" validate:"gt=0" yaml:"max_clients" json:"max_clients"`

	// HistoryPageSize is the page size for history queries and the batch
	// size for offline spool drains.
	HistoryPageSize int `mapstructure:"history_page_size" validate:"gt=0" yaml:"history_page_size" json:"history_page_size"`

	// FileChunkSize is the chunk size in bytes the server declares in
	// FileAccept and uses for download chunks.
	FileChunkSize int `mapstructure:"file_chunk_size" validate:"gt=0" yaml:"file_chunk_size" json:"file_chunk_size"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// WriteQueueMax caps each connection's pending outbound bytes.
	// A connection that exceeds the cap is disconnected.
	// Supports human-readable values: "4Mi", "1MB", 4194304.
	WriteQueueMax bytesize.ByteSize `mapstructure:"write_queue_max" yaml:"write_queue_max" json:"write_queue_max"`

	// Database selects and configures the persistence backend.
	// Defaults to SQLite at DBPath.
	Database store.Config `mapstructure:"database" yaml:"database,omitempty" json:"database,omitempty"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`

	// API contains the health/status HTTP server configuration.
	API api.Config `mapstructure:"api" yaml:"api" json:"api"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// Port is the HTTP port for the metrics endpoint.
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port" json:"port"`
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	// If no config file was found, use defaults
	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  onlinetalkd init\n\n"+
				"Or specify a custom config file:\n"+
				"  onlinetalkd <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  onlinetalkd init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path.
// The format follows the file extension: .json writes JSON, anything
// else writes YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err = json.MarshalIndent(cfg, "", "  ")
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: config files may carry database credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use the ONLINETALK_ prefix and underscores.
	// Example: ONLINETALK_LOG_LEVEL=debug
	v.SetEnvPrefix("ONLINETALK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/onlinetalk/config.{yaml,json}
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		// os.PathError when an explicit config file doesn't exist
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
// This includes ByteSize and time.Duration parsing.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and integers to bytesize.ByteSize,
// so config files can use "4Mi", "1MB", or plain numbers.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML and JSON often deserialize numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration, so config files
// can use "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Raw integers are nanoseconds
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to
// the current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "onlinetalk")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "onlinetalk")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the init command).
func GetConfigDir() string {
	return getConfigDir()
}
