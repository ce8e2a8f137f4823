package ftp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/docftp/internal/logger"
	protocol "github.com/marmos91/docftp/internal/protocol/ftp"
	"github.com/marmos91/docftp/pkg/backend"
	"github.com/marmos91/docftp/pkg/metrics"
)

// DefaultBanner is the text of the 220 greeting.
const DefaultBanner = "Service ready for new user."

// FTPAdapter implements the adapter.Adapter interface for the FTP control
// protocol.
//
// Architecture:
// FTPAdapter owns the TCP listener and the connection lifecycle. Each accepted
// connection gets an FTPConnection running its own control loop on a dedicated
// goroutine; nothing is shared between connections except the backend.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. Listener closed (no new connections)
//  3. shutdownCtx cancelled (control loops stop after the current command)
//  4. Wait for active connections to complete (up to ShutdownTimeout)
//  5. Force-close any remaining connections after timeout
//
// Thread safety:
// All methods are safe for concurrent use. Shutdown is guarded by sync.Once.
type FTPAdapter struct {
	config  FTPConfig
	backend backend.Backend
	metrics metrics.FTPMetrics

	// dialer opens data connections; nil uses the session default.
	dialer protocol.Dialer

	mu       sync.Mutex
	listener net.Listener
	port     atomic.Int32

	// ready is closed once the listener is bound (or binding failed).
	ready chan struct{}

	activeConns  sync.WaitGroup
	shutdownOnce sync.Once
	shutdown     chan struct{}
	connCount    atomic.Int32

	// connSemaphore limits concurrent connections. nil means unlimited.
	connSemaphore chan struct{}

	shutdownCtx    context.Context
	cancelRequests context.CancelFunc

	// activeConnections maps remote address to net.Conn for forced closure.
	activeConnections sync.Map
}

// FTPConfig holds configuration parameters for the FTP server.
//
// Default values (applied by New if zero):
//   - ReadTimeout: 5m
//   - WriteTimeout: 30s
//   - IdleTimeout: 10m
//   - ShutdownTimeout: 30s
//   - MetricsLogInterval: 5m
//   - Banner: DefaultBanner
//
// Port 0 binds an ephemeral port; pkg/config supplies the usual default.
type FTPConfig struct {
	// Enabled controls whether the FTP adapter is started.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// BindAddress is the interface to listen on. Empty means all interfaces.
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address" validate:"omitempty,ip"`

	// Port is the TCP port for control connections.
	Port int `mapstructure:"port" yaml:"port" validate:"min=0,max=65535"`

	// MaxConnections limits concurrent control connections. 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" yaml:"max_connections" validate:"min=0"`

	// ReadTimeout bounds the wait for the next command line.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"min=0"`

	// WriteTimeout bounds each reply write.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=0"`

	// IdleTimeout closes a connection that sends nothing for this long.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout" validate:"min=0"`

	// ShutdownTimeout is the maximum wait for active connections during
	// graceful shutdown before they are force-closed.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=0"`

	// MetricsLogInterval is the interval between connection count log lines.
	// 0 uses the default; negative disables.
	MetricsLogInterval time.Duration `mapstructure:"metrics_log_interval" yaml:"metrics_log_interval"`

	// Banner is the text sent with the 220 greeting.
	Banner string `mapstructure:"banner" yaml:"banner"`

	// MaxUploadSize aborts STOR uploads larger than this many bytes. 0 means unlimited.
	MaxUploadSize int64 `mapstructure:"max_upload_size" yaml:"max_upload_size" validate:"min=0"`

	// CommandsPerSecond throttles each connection. 0 disables rate limiting.
	CommandsPerSecond uint `mapstructure:"commands_per_second" yaml:"commands_per_second"`

	// CommandBurst is the limiter burst size. 0 defaults to CommandsPerSecond.
	CommandBurst uint `mapstructure:"command_burst" yaml:"command_burst"`
}

// applyDefaults fills in zero values.
func (c *FTPConfig) applyDefaults() {
	// Enabled is defaulted in pkg/config so an explicit false survives.
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 10 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.MetricsLogInterval == 0 {
		c.MetricsLogInterval = 5 * time.Minute
	}
	if c.Banner == "" {
		c.Banner = DefaultBanner
	}
}

// validate checks the configuration after defaults are applied.
func (c *FTPConfig) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.ReadTimeout < 0 {
		return fmt.Errorf("invalid ReadTimeout %v: must be >= 0", c.ReadTimeout)
	}
	if c.WriteTimeout < 0 {
		return fmt.Errorf("invalid WriteTimeout %v: must be >= 0", c.WriteTimeout)
	}
	if c.IdleTimeout < 0 {
		return fmt.Errorf("invalid IdleTimeout %v: must be >= 0", c.IdleTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	if c.MaxUploadSize < 0 {
		return fmt.Errorf("invalid MaxUploadSize %d: must be >= 0", c.MaxUploadSize)
	}
	return nil
}

// Option customizes an FTPAdapter.
type Option func(*FTPAdapter)

// WithDialer replaces the dialer used for active-mode data connections.
func WithDialer(d protocol.Dialer) Option {
	return func(s *FTPAdapter) {
		s.dialer = d
	}
}

// New creates a stopped FTPAdapter. Call SetBackend() and then Serve().
//
// Panics if config validation fails (programmer error).
func New(config FTPConfig, ftpMetrics metrics.FTPMetrics, opts ...Option) *FTPAdapter {
	config.applyDefaults()

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid FTP config: %v", err))
	}

	var connSemaphore chan struct{}
	if config.MaxConnections > 0 {
		connSemaphore = make(chan struct{}, config.MaxConnections)
		logger.Debug("FTP connection limit: %d", config.MaxConnections)
	} else {
		logger.Debug("FTP connection limit: unlimited")
	}

	shutdownCtx, cancelRequests := context.WithCancel(context.Background())

	if ftpMetrics == nil {
		ftpMetrics = metrics.NewNoopFTPMetrics()
	}

	s := &FTPAdapter{
		config:         config,
		metrics:        ftpMetrics,
		ready:          make(chan struct{}),
		shutdown:       make(chan struct{}),
		connSemaphore:  connSemaphore,
		shutdownCtx:    shutdownCtx,
		cancelRequests: cancelRequests,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetBackend injects the document backend.
//
// Thread safety:
// Called exactly once before Serve(), no synchronization needed.
func (s *FTPAdapter) SetBackend(b backend.Backend) {
	s.backend = b
	logger.Debug("FTP backend configured")
}

// Serve binds the listener and accepts control connections until ctx is
// cancelled. Each connection runs its own control loop.
//
// Returns:
//   - nil on graceful shutdown
//   - error if the listener cannot be bound or shutdown timed out
func (s *FTPAdapter) Serve(ctx context.Context) error {
	if s.backend == nil {
		close(s.ready)
		return fmt.Errorf("FTP adapter has no backend")
	}

	addr := net.JoinHostPort(s.config.BindAddress, strconv.Itoa(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		close(s.ready)
		return fmt.Errorf("failed to create FTP listener on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.port.Store(int32(listener.Addr().(*net.TCPAddr).Port))
	close(s.ready)

	select {
	case <-s.shutdown:
		// Stop() ran before the listener existed.
		_ = listener.Close()
		return nil
	default:
	}

	logger.Info("FTP server listening on %s", listener.Addr())
	logger.Debug("FTP config: max_connections=%d read_timeout=%v write_timeout=%v idle_timeout=%v rate=%d/s",
		s.config.MaxConnections, s.config.ReadTimeout, s.config.WriteTimeout, s.config.IdleTimeout,
		s.config.CommandsPerSecond)

	go func() {
		select {
		case <-ctx.Done():
			logger.Info("FTP shutdown signal received: %v", ctx.Err())
		case <-s.shutdown:
		}
		s.initiateShutdown()
	}()

	if s.config.MetricsLogInterval > 0 {
		go s.logMetrics(ctx)
	}

	for {
		if s.connSemaphore != nil {
			select {
			case s.connSemaphore <- struct{}{}:
			case <-s.shutdown:
				return s.gracefulShutdown()
			}
		}

		tcpConn, err := listener.Accept()
		if err != nil {
			if s.connSemaphore != nil {
				<-s.connSemaphore
			}

			select {
			case <-s.shutdown:
				return s.gracefulShutdown()
			default:
				logger.Debug("Error accepting FTP connection: %v", err)
				continue
			}
		}

		s.activeConns.Add(1)
		s.connCount.Add(1)

		connAddr := tcpConn.RemoteAddr().String()
		s.activeConnections.Store(connAddr, tcpConn)

		s.metrics.RecordConnectionAccepted()
		currentConns := s.connCount.Load()
		s.metrics.SetActiveConnections(currentConns)

		logger.Debug("FTP connection accepted from %s (active: %d)", connAddr, currentConns)

		conn := NewFTPConnection(s, tcpConn)
		go func(addr string) {
			defer func() {
				s.activeConnections.Delete(addr)

				s.activeConns.Done()
				s.connCount.Add(-1)
				if s.connSemaphore != nil {
					<-s.connSemaphore
				}

				s.metrics.RecordConnectionClosed()
				currentConns := s.connCount.Load()
				s.metrics.SetActiveConnections(currentConns)

				logger.Debug("FTP connection closed from %s (active: %d)", addr, currentConns)
			}()

			conn.Serve(s.shutdownCtx)
		}(connAddr)
	}
}

// initiateShutdown closes the listener and cancels in-flight commands. Safe to
// call multiple times.
func (s *FTPAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("FTP shutdown initiated")

		close(s.shutdown)

		s.mu.Lock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing FTP listener: %v", err)
			}
		}
		s.mu.Unlock()

		s.cancelRequests()
	})
}

// gracefulShutdown waits for active connections, force-closing them once
// ShutdownTimeout expires.
func (s *FTPAdapter) gracefulShutdown() error {
	activeCount := s.connCount.Load()
	logger.Info("FTP graceful shutdown: waiting for %d active connection(s) (timeout: %v)",
		activeCount, s.config.ShutdownTimeout)

	select {
	case <-s.connectionsDone():
		logger.Info("FTP graceful shutdown complete: all connections closed")
		return nil

	case <-time.After(s.config.ShutdownTimeout):
		remaining := s.connCount.Load()
		logger.Warn("FTP shutdown timeout exceeded: %d connection(s) still active after %v - forcing closure",
			remaining, s.config.ShutdownTimeout)

		s.forceCloseConnections()

		return fmt.Errorf("FTP shutdown timeout: %d connections force-closed", remaining)
	}
}

func (s *FTPAdapter) connectionsDone() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()
	return done
}

// forceCloseConnections closes every tracked control connection so blocked
// reads fail and the control loops exit.
func (s *FTPAdapter) forceCloseConnections() {
	logger.Info("Force-closing active FTP connections")

	closedCount := 0
	s.activeConnections.Range(func(key, value any) bool {
		addr := key.(string)
		conn := value.(net.Conn)

		if err := conn.Close(); err != nil {
			logger.Debug("Error force-closing connection to %s: %v", addr, err)
		} else {
			closedCount++
			s.metrics.RecordConnectionForceClosed()
			logger.Debug("Force-closed connection to %s", addr)
		}
		return true
	})

	if closedCount > 0 {
		logger.Info("Force-closed %d connection(s)", closedCount)
	}
}

// Stop initiates graceful shutdown and waits for connections until ctx is
// done. A nil ctx waits up to ShutdownTimeout.
func (s *FTPAdapter) Stop(ctx context.Context) error {
	s.initiateShutdown()

	if ctx == nil {
		return s.gracefulShutdown()
	}

	logger.Info("FTP graceful shutdown: waiting for %d active connection(s) (context timeout)",
		s.connCount.Load())

	select {
	case <-s.connectionsDone():
		logger.Info("FTP graceful shutdown complete: all connections closed")
		return nil

	case <-ctx.Done():
		remaining := s.connCount.Load()
		logger.Warn("FTP shutdown context cancelled: %d connection(s) still active: %v",
			remaining, ctx.Err())
		s.forceCloseConnections()
		return ctx.Err()
	}
}

// logMetrics periodically logs the active connection count.
func (s *FTPAdapter) logMetrics(ctx context.Context) {
	ticker := time.NewTicker(s.config.MetricsLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown:
			return
		case <-ticker.C:
			logger.Info("FTP metrics: active_connections=%d", s.connCount.Load())
		}
	}
}

// GetActiveConnections returns the current number of active connections.
func (s *FTPAdapter) GetActiveConnections() int32 {
	return s.connCount.Load()
}

// Ready is closed once Serve has bound its listener or failed to.
func (s *FTPAdapter) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound listener address, or nil before Serve binds it.
func (s *FTPAdapter) Addr() net.Addr {
	select {
	case <-s.ready:
	default:
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the bound TCP port, or the configured one before Serve binds.
func (s *FTPAdapter) Port() int {
	if p := s.port.Load(); p != 0 {
		return int(p)
	}
	return s.config.Port
}

// Protocol returns "FTP".
func (s *FTPAdapter) Protocol() string {
	return "FTP"
}

// sessionConfig builds the collaborators for a new session.
func (s *FTPAdapter) sessionConfig() protocol.SessionConfig {
	return protocol.SessionConfig{
		Backend:       s.backend,
		Dialer:        s.dialer,
		Recorder:      s.metrics,
		MaxUploadSize: s.config.MaxUploadSize,
	}
}
