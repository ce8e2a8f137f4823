package config

import (
	"strings"
	"time"

	"github.com/marmos91/docftp/pkg/adapter/ftp"
	"github.com/marmos91/docftp/pkg/backend"
)

// DefaultFTPPort is the default control port. Port 21 requires privileges.
const DefaultFTPPort = 2121

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Backend-specific defaults are handled by the backend implementations,
//     except for the values written into generated config files
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyBackendDefaults(&cfg.Backend)
	applyAdaptersDefaults(&cfg.Adapters)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// applyBackendDefaults sets backend defaults.
func applyBackendDefaults(cfg *BackendConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
	if cfg.Mongo == nil {
		cfg.Mongo = make(map[string]any)
	}

	// Defaults for every type so generated files document all sections
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "/tmp/docftp-badger"
	}
	if _, ok := cfg.S3["region"]; !ok {
		cfg.S3["region"] = "us-east-1"
	}
	if _, ok := cfg.Mongo["uri"]; !ok {
		cfg.Mongo["uri"] = "mongodb://127.0.0.1:27017"
	}

	if cfg.Users == nil {
		cfg.Users = []backend.User{}
	}
}

// applyAdaptersDefaults sets adapter defaults.
func applyAdaptersDefaults(cfg *AdaptersConfig) {
	// A config without an explicit ftp section (port 0) gets the adapter
	// enabled; an explicit "enabled: false" with a port is preserved.
	if !cfg.FTP.Enabled && cfg.FTP.Port == 0 {
		cfg.FTP.Enabled = true
	}

	applyFTPDefaults(&cfg.FTP)
}

// applyFTPDefaults sets FTP adapter defaults.
func applyFTPDefaults(cfg *ftp.FTPConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultFTPPort
	}

	// MaxConnections defaults to 0 (unlimited)

	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 5 * time.Minute
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 10 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.MetricsLogInterval == 0 {
		cfg.MetricsLogInterval = 5 * time.Minute
	}
	if cfg.Banner == "" {
		cfg.Banner = ftp.DefaultBanner
	}

	// MaxUploadSize and CommandsPerSecond default to 0 (unlimited)
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{
		Adapters: AdaptersConfig{
			FTP: ftp.FTPConfig{
				Enabled: true,
			},
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
