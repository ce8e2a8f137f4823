package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/docftp/pkg/adapter/ftp"
	"github.com/marmos91/docftp/pkg/backend"
	"github.com/spf13/viper"
)

// Config represents the complete DocFTP configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (DOCFTP_*)
//  2. Configuration file (YAML)
//  3. Default values
//
// Backend Configuration Pattern:
// Each backend implementation defines its own configuration type. The Backend
// section holds one map per backend type and only the map matching the
// selected type is decoded (see CreateBackend).
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains server-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Backend selects and configures the document backend
	Backend BackendConfig `mapstructure:"backend" yaml:"backend"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters" yaml:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains server-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// MetricsConfig controls the Prometheus metrics HTTP server.
type MetricsConfig struct {
	// Enabled starts the metrics server and Prometheus collectors
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port serving /metrics
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`
}

// BackendConfig specifies the document backend.
//
// The Type field determines which implementation is used. Only the matching
// type-specific section is decoded.
type BackendConfig struct {
	// Type specifies which backend implementation to use
	// Valid values: memory, badger, s3, mongo
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger s3 mongo"`

	// Memory contains memory-specific configuration
	// Only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3"`

	// Mongo contains MongoDB-specific configuration
	// Only used when Type = "mongo"
	Mongo map[string]any `mapstructure:"mongo" yaml:"mongo"`

	// Users lists the accounts of the embedded backends (memory, badger).
	// The s3 and mongo backends authenticate against the service itself.
	Users []backend.User `mapstructure:"users" yaml:"users" validate:"dive"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// FTP contains FTP protocol configuration.
	// Uses the ftp.FTPConfig type directly to avoid duplication.
	FTP ftp.FTPConfig `mapstructure:"ftp" yaml:"ftp"`
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

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: DOCFTP_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DOCFTP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/docftp/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "docftp")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "docftp")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
