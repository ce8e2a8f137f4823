package prometheus

import (
	"sync"
	"time"

	"github.com/marmos91/docftp/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// backendMetrics is the Prometheus implementation of metrics.BackendMetrics.
//
// The collectors are shared between instances so several backends of different
// types can report to one registry; each instance curries its own type label.
type backendMetrics struct {
	backendType string
	collectors  *backendCollectors
}

type backendCollectors struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTotal        *prometheus.CounterVec
}

var (
	backendCollectorsMu         sync.Mutex
	backendCollectorsByRegistry = map[*prometheus.Registry]*backendCollectors{}
)

// NewBackendMetrics creates a Prometheus-backed BackendMetrics for one backend type.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewBackendMetrics(backendType string) metrics.BackendMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopBackendMetrics()
	}

	reg := metrics.GetRegistry()

	backendCollectorsMu.Lock()
	defer backendCollectorsMu.Unlock()

	c, ok := backendCollectorsByRegistry[reg]
	if !ok {
		c = &backendCollectors{
			operationsTotal: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "docftp_backend_operations_total",
					Help: "Total number of backend operations by backend, operation and status",
				},
				[]string{"backend", "operation", "status"},
			),
			operationDuration: promauto.With(reg).NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "docftp_backend_operation_duration_milliseconds",
					Help:    "Duration of backend operations in milliseconds",
					Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
				},
				[]string{"backend", "operation"},
			),
			bytesTotal: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "docftp_backend_bytes_total",
					Help: "Total payload bytes fetched from or stored into the backend",
				},
				[]string{"backend", "direction"},
			),
		}
		backendCollectorsByRegistry[reg] = c
	}

	return &backendMetrics{backendType: backendType, collectors: c}
}

func (m *backendMetrics) RecordOperation(operation string, duration time.Duration, err error) {
	m.collectors.operationsTotal.WithLabelValues(m.backendType, operation, status(err)).Inc()
	m.collectors.operationDuration.WithLabelValues(m.backendType, operation).Observe(float64(duration.Milliseconds()))
}

func (m *backendMetrics) RecordBytes(direction string, bytes int64) {
	m.collectors.bytesTotal.WithLabelValues(m.backendType, direction).Add(float64(bytes))
}
