package ftp

import (
	"context"
	"io"
	"net"
	"net/textproto"
	"sync"
	"testing"
	"time"

	protocol "github.com/marmos91/docftp/internal/protocol/ftp"
	"github.com/marmos91/docftp/pkg/backend"
	"github.com/marmos91/docftp/pkg/backend/memory"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testTimeout = 5 * time.Second

func newTestBackend(t *testing.T) backend.Backend {
	t.Helper()
	hash, err := backend.HashPasswordWithCost("secret", bcrypt.MinCost)
	require.NoError(t, err)
	b, err := memory.NewMemoryBackend(memory.MemoryBackendConfig{
		Users: []backend.User{{Username: "alice", PasswordHash: hash}},
	})
	require.NoError(t, err)
	return b
}

func testConfig() FTPConfig {
	return FTPConfig{
		Enabled:            true,
		BindAddress:        "127.0.0.1",
		ShutdownTimeout:    2 * time.Second,
		MetricsLogInterval: -1,
	}
}

type runningAdapter struct {
	*FTPAdapter
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func (a *runningAdapter) address() string {
	return a.Addr().String()
}

// shutdown cancels Serve and returns its result.
func (a *runningAdapter) shutdown(t *testing.T) error {
	t.Helper()
	a.cancel()
	select {
	case <-a.done:
		return a.err
	case <-time.After(testTimeout):
		t.Fatal("Serve did not return after cancellation")
		return nil
	}
}

// startAdapter runs an adapter on an ephemeral loopback port.
func startAdapter(t *testing.T, config FTPConfig, m *fakeMetrics) *runningAdapter {
	t.Helper()

	var ftpMetrics = newFakeMetrics()
	if m != nil {
		ftpMetrics = m
	}

	a := New(config, ftpMetrics)
	a.SetBackend(newTestBackend(t))

	ctx, cancel := context.WithCancel(context.Background())
	r := &runningAdapter{FTPAdapter: a, cancel: cancel, done: make(chan struct{})}
	go func() {
		r.err = a.Serve(ctx)
		close(r.done)
	}()

	select {
	case <-a.Ready():
	case <-time.After(testTimeout):
		t.Fatal("adapter did not bind")
	}
	require.NotNil(t, a.Addr())

	t.Cleanup(func() {
		cancel()
		select {
		case <-r.done:
		case <-time.After(testTimeout):
		}
	})
	return r
}

// testClient is a raw control connection.
type testClient struct {
	t    *testing.T
	conn *textproto.Conn
}

func dialClient(t *testing.T, addr string) *testClient {
	t.Helper()
	conn, err := textproto.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &testClient{t: t, conn: conn}
}

// read returns the next reply, failing the test if it has another code.
func (c *testClient) read(code int) string {
	c.t.Helper()
	got, msg, err := c.conn.ReadResponse(0)
	require.NoError(c.t, err)
	require.Equal(c.t, code, got, "reply text: %s", msg)
	return msg
}

// expect sends a command and checks the reply code.
func (c *testClient) expect(line string, code int) string {
	c.t.Helper()
	_, err := c.conn.Cmd("%s", line)
	require.NoError(c.t, err)
	return c.read(code)
}

func (c *testClient) login() {
	c.t.Helper()
	c.read(220)
	c.expect("USER alice", 331)
	c.expect("PASS secret", 230)
}

// port opens an active-mode listener and announces it with PORT.
func (c *testClient) port() *net.TCPListener {
	c.t.Helper()
	ln, err := net.ListenTCP("tcp4", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(c.t, err)
	c.t.Cleanup(func() { _ = ln.Close() })

	arg, err := protocol.FormatPortArgument(ln.Addr().(*net.TCPAddr))
	require.NoError(c.t, err)
	c.expect("PORT "+arg, 200)
	return ln
}

func accept(t *testing.T, ln *net.TCPListener) net.Conn {
	t.Helper()
	require.NoError(t, ln.SetDeadline(time.Now().Add(testTimeout)))
	conn, err := ln.Accept()
	require.NoError(t, err)
	return conn
}

// download runs LIST or RETR and returns the data connection payload.
func (c *testClient) download(ln *net.TCPListener, line string) string {
	c.t.Helper()
	c.expect(line, 150)
	conn := accept(c.t, ln)
	defer conn.Close()
	data, err := io.ReadAll(conn)
	require.NoError(c.t, err)
	c.read(226)
	return string(data)
}

// upload runs STOR with payload.
func (c *testClient) upload(ln *net.TCPListener, line string, payload []byte) {
	c.t.Helper()
	c.expect(line, 150)
	conn := accept(c.t, ln)
	_, err := conn.Write(payload)
	require.NoError(c.t, err)
	require.NoError(c.t, conn.Close())
	c.read(226)
}

// fakeMetrics records FTPMetrics calls.
type fakeMetrics struct {
	mu          sync.Mutex
	commands    map[string]int
	authOK      int
	authFailed  int
	rateLimited int
	transfers   map[string]int64
	accepted    int
	closed      int
	forced      int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{commands: map[string]int{}, transfers: map[string]int64{}}
}

func (m *fakeMetrics) RecordCommand(command string, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[command]++
}

func (m *fakeMetrics) RecordTransfer(command string, bytes int64, duration time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transfers[command] += bytes
}

func (m *fakeMetrics) RecordAuthentication(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if success {
		m.authOK++
	} else {
		m.authFailed++
	}
}

func (m *fakeMetrics) RecordRateLimited() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rateLimited++
}

func (m *fakeMetrics) SetActiveConnections(count int32) {}

func (m *fakeMetrics) RecordConnectionAccepted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accepted++
}

func (m *fakeMetrics) RecordConnectionClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
}

func (m *fakeMetrics) RecordConnectionForceClosed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forced++
}

// snapshot runs fn with the lock held.
func (m *fakeMetrics) snapshot(fn func(m *fakeMetrics)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

// eventually waits until cond holds. Command metrics are recorded after the
// reply is written, so a client can observe the reply first.
func (m *fakeMetrics) eventually(t *testing.T, cond func(m *fakeMetrics) bool) {
	t.Helper()
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return cond(m)
	}, testTimeout, 10*time.Millisecond)
}
