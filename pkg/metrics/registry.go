// Package metrics defines the observability interfaces of the gateway and the
// global Prometheus registry they report to.
//
// All metrics are optional. When InitRegistry has not been called the
// constructors in pkg/metrics/prometheus return no-op implementations, so the
// server runs identically with or without metrics.
//
// Usage:
//
//	metrics.InitRegistry()
//	ftpMetrics := prometheus.NewFTPMetrics()
//	adapter := ftp.New(config, ftpMetrics)
//
//	// or without metrics
//	adapter := ftp.New(config, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry, written once by InitRegistry.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// Call it before creating any metrics instances. Subsequent calls are ignored.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry.
//
// Returns nil if InitRegistry() has not been called, indicating metrics
// are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry() has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
