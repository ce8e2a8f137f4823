package ftp

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/marmos91/docftp/internal/logger"
	protocol "github.com/marmos91/docftp/internal/protocol/ftp"
	"github.com/marmos91/docftp/internal/ratelimiter"
)

// readBufferSize is the size of a single control channel read.
const readBufferSize = 4096

// FTPConnection runs the control loop of one client.
type FTPConnection struct {
	server  *FTPAdapter
	conn    net.Conn
	limiter *ratelimiter.RateLimiter
}

func NewFTPConnection(server *FTPAdapter, conn net.Conn) *FTPConnection {
	return &FTPConnection{
		server:  server,
		conn:    conn,
		limiter: ratelimiter.New(server.config.CommandsPerSecond, server.config.CommandBurst),
	}
}

// controlWriter applies the write timeout to every reply.
type controlWriter struct {
	conn    net.Conn
	timeout time.Duration
}

func (w *controlWriter) Write(p []byte) (int, error) {
	if w.timeout > 0 {
		if err := w.conn.SetWriteDeadline(time.Now().Add(w.timeout)); err != nil {
			return 0, err
		}
	}
	return w.conn.Write(p)
}

func (w *controlWriter) Close() error {
	return w.conn.Close()
}

// Serve greets the client and processes commands sequentially until the client
// quits, the transport fails or ctx is cancelled. Panics are recovered so one
// connection cannot take down the server.
//
// Each read is fed to a LineFramer and every complete line is dispatched before
// the next read, so commands split across reads or pipelined in one read are
// both handled in order.
func (c *FTPConnection) Serve(ctx context.Context) {
	clientAddr := c.conn.RemoteAddr().String()
	session := protocol.NewSession(&controlWriter{conn: c.conn, timeout: c.server.config.WriteTimeout},
		clientAddr, c.server.sessionConfig())

	var framer protocol.LineFramer

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in FTP session %s from %s: %v", session.ID, clientAddr, r)
		}
		if n := framer.Buffered(); n > 0 {
			logger.Debug("FTP session %s: discarding %d unterminated byte(s)", session.ID, n)
		}
		_ = session.Close()
	}()

	// Unblock a pending read when the server shuts down.
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	logger.Debug("FTP session %s started for %s", session.ID, clientAddr)

	if err := session.Greet(c.server.config.Banner); err != nil {
		logger.Debug("FTP session %s: greeting failed: %v", session.ID, err)
		return
	}

	buf := make([]byte, readBufferSize)
	for {
		if err := c.armReadDeadline(ctx, framer.Buffered() > 0); err != nil {
			c.logShutdown(session, err)
			return
		}

		n, err := c.conn.Read(buf)
		if n > 0 {
			framer.Feed(buf[:n])
			for {
				line, ok := framer.Next()
				if !ok {
					break
				}
				if !c.handleLine(ctx, session, line) {
					return
				}
			}
		}

		if err != nil {
			c.logReadError(ctx, session, err)
			return
		}
	}
}

// armReadDeadline sets the deadline for the next read: IdleTimeout while
// waiting for a new command, ReadTimeout while a line is partially received.
func (c *FTPConnection) armReadDeadline(ctx context.Context, midLine bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := c.server.config.IdleTimeout
	if midLine {
		timeout = c.server.config.ReadTimeout
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return err
	}

	// The shutdown hook may have fired before the deadline was replaced.
	return ctx.Err()
}

// handleLine dispatches one command and reports whether the loop continues.
func (c *FTPConnection) handleLine(ctx context.Context, session *protocol.Session, line []byte) bool {
	if !c.limiter.Allow() {
		c.server.metrics.RecordRateLimited()
		if err := c.limiter.Wait(ctx); err != nil {
			c.logShutdown(session, err)
			return false
		}
	}

	start := time.Now()
	name, err := session.Dispatch(ctx, line)
	c.server.metrics.RecordCommand(name, time.Since(start), err)

	if name == "PASS" && err == nil && session.Username() != "" {
		c.server.metrics.RecordAuthentication(session.State() == protocol.StateAuthenticated)
	}

	var transferErr *protocol.TransferError
	switch {
	case errors.As(err, &transferErr):
		logger.Debug("FTP session %s: %v", session.ID, transferErr)
	case err != nil:
		logger.Debug("FTP session %s: control connection failed: %v", session.ID, err)
		return false
	}

	if session.State() == protocol.StateClosed {
		logger.Debug("FTP session %s: client quit", session.ID)
		return false
	}

	if ctx.Err() != nil {
		c.logShutdown(session, ctx.Err())
		return false
	}
	return true
}

func (c *FTPConnection) logReadError(ctx context.Context, session *protocol.Session, err error) {
	if ctx.Err() != nil {
		c.logShutdown(session, ctx.Err())
		return
	}

	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		logger.Debug("FTP session %s: connection closed by client", session.ID)
	case errors.As(err, &netErr) && netErr.Timeout():
		logger.Debug("FTP session %s: idle timeout: %v", session.ID, err)
	default:
		logger.Debug("FTP session %s: read error: %v", session.ID, err)
	}
}

// logShutdown sends 421 when the server, not the client, ends the session.
func (c *FTPConnection) logShutdown(session *protocol.Session, err error) {
	logger.Debug("FTP session %s: closing: %v", session.ID, err)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		_ = session.NotifyShutdown()
	}
}
