package ftp

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/docftp/internal/logger"
	"github.com/marmos91/docftp/pkg/backend"
)

// DefaultDialTimeout bounds active-mode data connection establishment when no
// Dialer is configured.
const DefaultDialTimeout = 30 * time.Second

// State is the authentication state of a session.
type State int

const (
	// StateUnauthenticated is the initial state, and the state after a
	// rejected password.
	StateUnauthenticated State = iota

	// StateAwaitingPassword follows USER.
	StateAwaitingPassword

	// StateAuthenticated follows a successful PASS. Only this state permits
	// navigation, listing, creation and transfers.
	StateAuthenticated

	// StateClosed is terminal.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAwaitingPassword:
		return "awaiting-password"
	case StateAuthenticated:
		return "authenticated"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Dialer opens active-mode data connections. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// TransferRecorder observes completed data transfers.
type TransferRecorder interface {
	// RecordTransfer is called once per transfer command that reached the
	// data connection stage. err is nil on success.
	RecordTransfer(command string, bytes int64, duration time.Duration, err error)
}

// SessionConfig holds the collaborators a session needs.
type SessionConfig struct {
	// Backend authenticates users and yields per-session handles. Required.
	Backend backend.Backend

	// Dialer opens data connections. Defaults to a net.Dialer with
	// DefaultDialTimeout.
	Dialer Dialer

	// Recorder observes transfers. Optional.
	Recorder TransferRecorder

	// MaxUploadSize aborts STOR uploads larger than this many bytes.
	// 0 means unlimited.
	MaxUploadSize int64
}

// Session is the state of one control connection.
//
// Lifecycle: created when a connection is accepted, mutated only by the command
// handlers invoked from Dispatch, and closed exactly once by Close (QUIT,
// transport error or server shutdown).
//
// Thread Safety:
// Dispatch must not be called concurrently. Close and State may be called from
// any goroutine.
type Session struct {
	// ID identifies the session in logs.
	ID string

	// RemoteAddr is the control connection peer.
	RemoteAddr string

	control io.WriteCloser
	config  SessionConfig

	mu    sync.Mutex
	state State

	username   string
	handle     backend.Handle
	database   string
	collection string

	// dataAddr is the host:port from the last PORT. It is not cleared after a
	// transfer, so consecutive transfers may reuse it.
	dataAddr string

	// transferType is acknowledged but not enforced; transfers are always binary.
	transferType string

	closeOnce sync.Once
	closeErr  error
}

// NewSession creates a session writing replies to control.
func NewSession(control io.WriteCloser, remoteAddr string, config SessionConfig) *Session {
	if config.Dialer == nil {
		config.Dialer = &net.Dialer{Timeout: DefaultDialTimeout}
	}

	return &Session{
		ID:           uuid.NewString(),
		RemoteAddr:   remoteAddr,
		control:      control,
		config:       config,
		state:        StateUnauthenticated,
		transferType: "A",
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateClosed {
		s.state = state
	}
}

// Username returns the name given with USER, if any.
func (s *Session) Username() string {
	return s.username
}

// WorkingDirectory returns the current virtual path.
func (s *Session) WorkingDirectory() string {
	return WorkingDirectory(s.database, s.collection)
}

// DataAddress returns the pending active-mode address, or "" if PORT was never
// received.
func (s *Session) DataAddress() string {
	return s.dataAddr
}

// Greet sends the 220 service-ready banner.
func (s *Session) Greet(banner string) error {
	return s.reply(220, banner)
}

// NotifyShutdown tells the client the server is going away (421). The caller
// closes the session afterwards.
func (s *Session) NotifyShutdown() error {
	return s.reply(421, "Service not available, closing control connection.")
}

// Close enters StateClosed, releases the backend handle and closes the control
// connection. Only the first call has any effect.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateClosed
		s.mu.Unlock()

		s.releaseHandle()
		s.closeErr = s.control.Close()

		logger.Debug("FTP session %s closed (%s)", s.ID, s.RemoteAddr)
	})
	return s.closeErr
}

// releaseHandle drops the backend handle, if any.
func (s *Session) releaseHandle() {
	if s.handle == nil {
		return
	}
	if err := s.handle.Close(); err != nil {
		logger.Warn("FTP session %s: failed to release backend handle: %v", s.ID, err)
	}
	s.handle = nil
}

// reply writes "<code> <text>\r\n" to the control connection. A write error is
// a transport failure and ends the session.
func (s *Session) reply(code int, text string) error {
	logger.Debug("FTP session %s <- %d %s", s.ID, code, text)
	if _, err := fmt.Fprintf(s.control, "%d %s\r\n", code, text); err != nil {
		return fmt.Errorf("write reply %d: %w", code, err)
	}
	return nil
}
