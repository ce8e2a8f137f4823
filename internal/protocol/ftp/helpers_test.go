package ftp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/docftp/pkg/backend"
	"github.com/marmos91/docftp/pkg/backend/memory"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// ============================================================================
// Control channel
// ============================================================================

// controlBuffer captures replies written to the control connection.
type controlBuffer struct {
	bytes.Buffer
	closed int
}

func (c *controlBuffer) Close() error {
	c.closed++
	return nil
}

// replies returns all replies written so far, without terminators.
func (c *controlBuffer) replies() []string {
	raw := strings.TrimSuffix(c.String(), "\r\n")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, "\r\n")
}

// last returns the most recent reply.
func (c *controlBuffer) last() string {
	r := c.replies()
	if len(r) == 0 {
		return ""
	}
	return r[len(r)-1]
}

// codes returns the reply codes written since the previous reset.
func (c *controlBuffer) codes() []string {
	var codes []string
	for _, r := range c.replies() {
		codes = append(codes, r[:3])
	}
	return codes
}

// failingWriter rejects every write, simulating a dropped control connection.
type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("connection reset") }
func (failingWriter) Close() error                { return nil }

// ============================================================================
// Backend
// ============================================================================

// recordingBackend wraps the memory backend and counts calls per operation.
type recordingBackend struct {
	inner backend.Backend

	mu    sync.Mutex
	calls map[string]int

	// failWith makes every handle operation fail with this error.
	failWith error
}

func newRecordingBackend(t *testing.T) *recordingBackend {
	t.Helper()

	hash, err := backend.HashPasswordWithCost("secret", bcrypt.MinCost)
	require.NoError(t, err)

	inner, err := memory.NewMemoryBackend(memory.MemoryBackendConfig{
		Users: []backend.User{{Username: "alice", PasswordHash: hash}},
	})
	require.NoError(t, err)

	return &recordingBackend{inner: inner, calls: make(map[string]int)}
}

func (b *recordingBackend) record(op string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls[op]++
}

func (b *recordingBackend) count(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

func (b *recordingBackend) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		n += c
	}
	return n
}

func (b *recordingBackend) Authenticate(ctx context.Context, username, password string) (backend.Handle, error) {
	b.record("Authenticate")
	h, err := b.inner.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return &recordingHandle{b: b, inner: h}, nil
}

func (b *recordingBackend) Close() error {
	return b.inner.Close()
}

type recordingHandle struct {
	b     *recordingBackend
	inner backend.Handle
}

func (h *recordingHandle) ListDatabases(ctx context.Context) ([]string, error) {
	h.b.record("ListDatabases")
	if h.b.failWith != nil {
		return nil, h.b.failWith
	}
	return h.inner.ListDatabases(ctx)
}

func (h *recordingHandle) ListCollections(ctx context.Context, db string) ([]string, error) {
	h.b.record("ListCollections")
	if h.b.failWith != nil {
		return nil, h.b.failWith
	}
	return h.inner.ListCollections(ctx, db)
}

func (h *recordingHandle) ListDocuments(ctx context.Context, db, coll string) ([]backend.DocumentInfo, error) {
	h.b.record("ListDocuments")
	if h.b.failWith != nil {
		return nil, h.b.failWith
	}
	return h.inner.ListDocuments(ctx, db, coll)
}

func (h *recordingHandle) FetchContent(ctx context.Context, db, coll, id string) ([]byte, error) {
	h.b.record("FetchContent")
	if h.b.failWith != nil {
		return nil, h.b.failWith
	}
	return h.inner.FetchContent(ctx, db, coll, id)
}

func (h *recordingHandle) StoreContent(ctx context.Context, db, coll, id string, data []byte) error {
	h.b.record("StoreContent")
	if h.b.failWith != nil {
		return h.b.failWith
	}
	return h.inner.StoreContent(ctx, db, coll, id, data)
}

func (h *recordingHandle) CreateCollection(ctx context.Context, db, coll string) error {
	h.b.record("CreateCollection")
	if h.b.failWith != nil {
		return h.b.failWith
	}
	return h.inner.CreateCollection(ctx, db, coll)
}

func (h *recordingHandle) Close() error {
	h.b.record("Close")
	return h.inner.Close()
}

// ============================================================================
// Data connections
// ============================================================================

// recordingDialer plays the client side of active-mode data connections over
// net.Pipe. Downloads are captured in received; uploads send the next queued
// payload and close.
type recordingDialer struct {
	mu      sync.Mutex
	dialed  []string
	err     error
	uploads [][]byte

	// stall leaves the client side silent and open: it never sends, reads or
	// closes until release.
	stall   bool
	stalled []net.Conn

	received chan []byte
}

func newRecordingDialer() *recordingDialer {
	return &recordingDialer{received: make(chan []byte, 16)}
}

func (d *recordingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	d.dialed = append(d.dialed, address)
	err := d.err
	var upload []byte
	if len(d.uploads) > 0 {
		upload, d.uploads = d.uploads[0], d.uploads[1:]
	}
	d.mu.Unlock()

	if err != nil {
		return nil, err
	}

	server, client := net.Pipe()
	if d.stall {
		d.mu.Lock()
		d.stalled = append(d.stalled, client)
		d.mu.Unlock()
		return server, nil
	}

	go func() {
		defer client.Close()
		if upload != nil {
			if len(upload) > 0 {
				_, _ = client.Write(upload)
			}
			return
		}
		data, _ := io.ReadAll(client)
		d.received <- data
	}()
	return server, nil
}

// release closes the client side of stalled connections.
func (d *recordingDialer) release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range d.stalled {
		_ = c.Close()
	}
	d.stalled = nil
}

// queueUpload makes the next dialed connection send payload.
func (d *recordingDialer) queueUpload(payload []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uploads = append(d.uploads, payload)
}

func (d *recordingDialer) dials() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dialed...)
}

// download waits for the bytes the server sent on the last download.
func (d *recordingDialer) download(t *testing.T) []byte {
	t.Helper()
	select {
	case data := <-d.received:
		return data
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for data connection payload")
		return nil
	}
}

// transferRecorder captures RecordTransfer calls.
type transferRecorder struct {
	mu      sync.Mutex
	records []transferRecord
}

type transferRecord struct {
	command string
	bytes   int64
	err     error
}

func (r *transferRecorder) RecordTransfer(command string, n int64, d time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, transferRecord{command: command, bytes: n, err: err})
}

// ============================================================================
// Fixture
// ============================================================================

type fixture struct {
	t       *testing.T
	ctx     context.Context
	control *controlBuffer
	backend *recordingBackend
	dialer  *recordingDialer
	session *Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		t:       t,
		ctx:     context.Background(),
		control: &controlBuffer{},
		backend: newRecordingBackend(t),
		dialer:  newRecordingDialer(),
	}
	f.session = NewSession(f.control, "127.0.0.1:50000", SessionConfig{
		Backend: f.backend,
		Dialer:  f.dialer,
	})
	return f
}

// send dispatches one command line and returns the error from Dispatch.
func (f *fixture) send(line string) error {
	f.t.Helper()
	_, err := f.session.Dispatch(f.ctx, []byte(line))
	return err
}

// must dispatches a command that is expected to succeed at the transport level
// and returns the last reply.
func (f *fixture) must(line string) string {
	f.t.Helper()
	require.NoError(f.t, f.send(line))
	return f.control.last()
}

// login authenticates as alice and clears the captured replies.
func (f *fixture) login() {
	f.t.Helper()
	f.must("USER alice")
	require.Equal(f.t, "230 User alice logged in.", f.must("PASS secret"))
	f.control.Reset()
}
