package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/docftp/internal/logger"
	"github.com/marmos91/docftp/pkg/adapter"
	"github.com/marmos91/docftp/pkg/backend"
	"github.com/marmos91/docftp/pkg/backend/instrumented"
	"github.com/marmos91/docftp/pkg/metrics"
)

// DefaultStopTimeout bounds the Stop() calls issued during shutdown when no
// timeout is configured.
const DefaultStopTimeout = 30 * time.Second

// GatewayServer manages the lifecycle of the protocol adapters that expose a
// shared document backend.
//
// Lifecycle:
//  1. Creation: New() with the backend
//  2. Registration: AddAdapter() for each protocol front end
//  3. Startup: Serve() injects the backend and starts all adapters concurrently
//  4. Shutdown: context cancellation stops adapters in reverse registration order
//
// Thread safety:
// AddAdapter() and the setters may be called concurrently before Serve().
// Serve() may only be called once.
//
// Example usage:
//
//	srv := server.New(b, cfg.Server.ShutdownTimeout)
//	srv.AddAdapter(ftp.New(ftpConfig, ftpMetrics))
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//
//	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    log.Fatal(err)
//	}
type GatewayServer struct {
	backend     backend.Backend
	stopTimeout time.Duration

	// backendMetrics, when set, wraps the backend before injection
	backendMetrics metrics.BackendMetrics
	metricsServer  *metrics.Server

	mu       sync.RWMutex
	adapters []adapter.Adapter
	served   bool
}

// New creates a GatewayServer for the given backend.
//
// stopTimeout bounds the Stop() calls made on shutdown; zero selects
// DefaultStopTimeout.
//
// Panics if b is nil.
func New(b backend.Backend, stopTimeout time.Duration) *GatewayServer {
	if b == nil {
		panic("backend cannot be nil")
	}
	if stopTimeout <= 0 {
		stopTimeout = DefaultStopTimeout
	}

	return &GatewayServer{
		backend:     b,
		stopTimeout: stopTimeout,
		adapters:    make([]adapter.Adapter, 0, 2),
	}
}

// SetBackendMetrics enables per-operation backend instrumentation. Must be
// called before Serve().
func (s *GatewayServer) SetBackendMetrics(m metrics.BackendMetrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.backendMetrics = m
}

// SetMetricsServer registers the Prometheus endpoint so it shares the
// server's lifecycle. Must be called before Serve().
func (s *GatewayServer) SetMetricsServer(ms *metrics.Server) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metricsServer = ms
}

// AddAdapter registers a protocol adapter.
//
// Returns an error when another adapter already serves the same protocol or
// port. Port 0 (ephemeral) never conflicts.
//
// Panics if a is nil or Serve() has already been called.
func (s *GatewayServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	s.adapters = append(s.adapters, a)
	logger.Info("Registered %s adapter on port %d", protocol, port)

	return nil
}

// Adapters returns a copy of the registered adapters.
func (s *GatewayServer) Adapters() []adapter.Adapter {
	s.mu.RLock()
	defer s.mu.RUnlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}

// Serve injects the backend into every adapter, starts them concurrently and
// blocks until ctx is cancelled or an adapter fails.
//
// Shutdown behavior:
//   - All adapters receive Stop() in reverse registration order
//   - Serve() waits for every adapter goroutine before returning
//   - The backend is closed last
//
// Returns:
//   - ctx.Err() when shutdown was triggered by cancellation
//   - the wrapped adapter error when an adapter failed
//   - an error if no adapters are registered or Serve() was already called
func (s *GatewayServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("server already started")
	}
	if len(s.adapters) == 0 {
		s.mu.Unlock()
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}
	s.served = true
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	shared := instrumented.Wrap(s.backend, s.backendMetrics)
	metricsServer := s.metricsServer
	s.mu.Unlock()

	defer func() {
		if err := s.backend.Close(); err != nil {
			logger.Error("Failed to close backend: %v", err)
		}
	}()

	logger.Info("Starting gateway with %d adapter(s)", len(adapters))

	// buffered so failing adapters never block
	errChan := make(chan adapterError, len(adapters)+1)
	var wg sync.WaitGroup

	metricsCtx, stopMetrics := context.WithCancel(context.Background())
	defer stopMetrics()
	if metricsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Start(metricsCtx); err != nil {
				errChan <- adapterError{protocol: "metrics", err: err}
			}
		}()
	}

	for _, adp := range adapters {
		adp.SetBackend(shared)

		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			err := a.Serve(ctx)
			switch {
			case err == nil:
				logger.Info("%s adapter stopped", protocol)
			case errors.Is(err, context.Canceled) || ctx.Err() != nil:
				logger.Debug("%s adapter stopped gracefully", protocol)
			default:
				logger.Error("%s adapter failed: %v", protocol, err)
				errChan <- adapterError{protocol: protocol, err: err}
			}
		}(adp)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()

	case adapterErr := <-errChan:
		logger.Error("%s failed: %v - initiating shutdown of all adapters",
			adapterErr.protocol, adapterErr.err)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	s.stopAllAdapters(adapters)
	stopMetrics()

	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	logger.Info("Gateway stopped")
	return shutdownErr
}

type adapterError struct {
	protocol string
	err      error
}

// stopAllAdapters signals every adapter to shut down, last registered first.
// Errors are logged and do not prevent the remaining adapters from stopping.
func (s *GatewayServer) stopAllAdapters(adapters []adapter.Adapter) {
	ctx, cancel := context.WithTimeout(context.Background(), s.stopTimeout)
	defer cancel()

	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		adp := adapters[i]
		protocol := adp.Protocol()

		logger.Debug("Stopping %s adapter (port %d)", protocol, adp.Port())

		if err := adp.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", protocol, err)
		} else {
			logger.Debug("%s adapter stop signal sent", protocol)
		}
	}
}
