package config

import (
	"github.com/marmos91/docftp/pkg/metrics"
	promMetrics "github.com/marmos91/docftp/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// FTPMetrics is the collector for the FTP adapter (never nil, no-op if disabled)
	FTPMetrics metrics.FTPMetrics

	// BackendMetrics is the collector for backend calls (nil if disabled, so
	// the backend is used unwrapped)
	BackendMetrics metrics.BackendMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op FTP metrics and nil backend metrics
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			FTPMetrics: metrics.NewNoopFTPMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port: cfg.Server.Metrics.Port,
	})

	return &MetricsResult{
		Server:         server,
		FTPMetrics:     promMetrics.NewFTPMetrics(),
		BackendMetrics: promMetrics.NewBackendMetrics(cfg.Backend.Type),
	}
}
