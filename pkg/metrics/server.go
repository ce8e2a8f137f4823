package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/docftp/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server provides an HTTP server for exposing Prometheus metrics.
//
// The server exposes the following endpoints:
//   - GET /metrics: Prometheus metrics in text format
//   - GET /: Plain-text pointer to /metrics
//
// The server supports graceful shutdown with configurable timeout.
type Server struct {
	server       *http.Server
	port         int
	shutdownOnce sync.Once

	mu    sync.Mutex
	ready chan struct{}
}

// ServerConfig configures the metrics HTTP server.
type ServerConfig struct {
	// BindAddress is the interface to listen on. Empty means all interfaces.
	BindAddress string

	// Port to listen on for HTTP requests. 0 picks a free port when
	// AllowEphemeralPort is set, otherwise defaults to 9090.
	Port int

	// AllowEphemeralPort keeps Port 0 as "any free port" (tests).
	AllowEphemeralPort bool
}

// applyDefaults fills in zero values with sensible defaults.
func (c *ServerConfig) applyDefaults() {
	if c.Port <= 0 && !c.AllowEphemeralPort {
		c.Port = 9090
	}
}

// NewServer creates a new metrics HTTP server.
//
// The server is created in a stopped state. Call Start() to begin serving requests.
func NewServer(config ServerConfig) *Server {
	config.applyDefaults()

	mux := http.NewServeMux()

	if registry := GetRegistry(); registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
		logger.Debug("Metrics endpoint registered at /metrics")
	} else {
		mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprintf(w, "Metrics collection is disabled\n")
		})
		logger.Debug("Metrics collection disabled")
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = fmt.Fprintf(w, "DocFTP metrics server\n\nScrape /metrics for Prometheus metrics.\n")
	})

	server := &http.Server{
		Addr:         net.JoinHostPort(config.BindAddress, fmt.Sprintf("%d", config.Port)),
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		server: server,
		port:   config.Port,
		ready:  make(chan struct{}),
	}
}

// Start starts the metrics HTTP server and blocks until the context is cancelled
// or an error occurs.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the server fails to start or shutdown encounters an error
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("metrics server failed to listen on %s: %w", s.server.Addr, err)
	}

	s.mu.Lock()
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.mu.Unlock()
	close(s.ready)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening on %s", ln.Addr())

		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Metrics server shutdown signal received")
		// the parent context is already cancelled
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		return fmt.Errorf("metrics server failed: %w", err)
	}
}

// Stop initiates graceful shutdown of the metrics server.
//
// Stop is safe to call multiple times and safe to call concurrently with Start().
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		logger.Debug("Metrics server shutdown initiated")

		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("metrics server shutdown error: %w", err)
			logger.Error("Metrics server shutdown error: %v", err)
		} else {
			logger.Info("Metrics server stopped gracefully")
		}
	})
	return shutdownErr
}

// Ready is closed once the server is listening.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Port returns the TCP port the server is listening on. Before Start it is the
// configured port.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}
