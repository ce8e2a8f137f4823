// Package prometheus provides Prometheus-backed implementations of the
// interfaces in pkg/metrics.
package prometheus

import (
	"time"

	"github.com/marmos91/docftp/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ftpMetrics is the Prometheus implementation of metrics.FTPMetrics.
type ftpMetrics struct {
	commandsTotal          *prometheus.CounterVec
	commandDuration        *prometheus.HistogramVec
	transfersTotal         *prometheus.CounterVec
	transferDuration       *prometheus.HistogramVec
	bytesTransferred       *prometheus.CounterVec
	authentications        *prometheus.CounterVec
	rateLimited            prometheus.Counter
	activeConnections      prometheus.Gauge
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
}

// NewFTPMetrics creates a new Prometheus-backed FTPMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewFTPMetrics() metrics.FTPMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopFTPMetrics()
	}

	reg := metrics.GetRegistry()

	return &ftpMetrics{
		commandsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "docftp_ftp_commands_total",
				Help: "Total number of FTP commands by verb and status",
			},
			[]string{"command", "status"},
		),
		commandDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "docftp_ftp_command_duration_milliseconds",
				Help: "Duration of FTP commands in milliseconds",
				Buckets: []float64{
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s
					10000, // 10s
				},
			},
			[]string{"command"},
		),
		transfersTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "docftp_ftp_transfers_total",
				Help: "Total number of data transfers by command and status",
			},
			[]string{"command", "status"},
		),
		transferDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docftp_ftp_transfer_duration_milliseconds",
				Help:    "Duration of data transfers in milliseconds",
				Buckets: []float64{1, 10, 100, 1000, 10000, 60000},
			},
			[]string{"command"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "docftp_ftp_bytes_transferred_total",
				Help: "Total payload bytes moved over data connections",
			},
			[]string{"command"},
		),
		authentications: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "docftp_ftp_authentications_total",
				Help: "Total number of login attempts by outcome",
			},
			[]string{"status"},
		),
		rateLimited: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "docftp_ftp_commands_rate_limited_total",
				Help: "Total number of commands delayed by the per-connection rate limiter",
			},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "docftp_ftp_active_connections",
				Help: "Current number of active FTP control connections",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "docftp_ftp_connections_accepted_total",
				Help: "Total number of FTP control connections accepted",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "docftp_ftp_connections_closed_total",
				Help: "Total number of FTP control connections closed",
			},
		),
		connectionsForceClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "docftp_ftp_connections_force_closed_total",
				Help: "Total number of FTP control connections closed by the shutdown timeout",
			},
		),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *ftpMetrics) RecordCommand(command string, duration time.Duration, err error) {
	m.commandsTotal.WithLabelValues(command, status(err)).Inc()
	m.commandDuration.WithLabelValues(command).Observe(float64(duration.Milliseconds()))
}

func (m *ftpMetrics) RecordTransfer(command string, bytes int64, duration time.Duration, err error) {
	m.transfersTotal.WithLabelValues(command, status(err)).Inc()
	m.transferDuration.WithLabelValues(command).Observe(float64(duration.Milliseconds()))
	m.bytesTransferred.WithLabelValues(command).Add(float64(bytes))
}

func (m *ftpMetrics) RecordAuthentication(success bool) {
	s := "failure"
	if success {
		s = "success"
	}
	m.authentications.WithLabelValues(s).Inc()
}

func (m *ftpMetrics) RecordRateLimited() {
	m.rateLimited.Inc()
}

func (m *ftpMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *ftpMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *ftpMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}

func (m *ftpMetrics) RecordConnectionForceClosed() {
	m.connectionsForceClosed.Inc()
}
