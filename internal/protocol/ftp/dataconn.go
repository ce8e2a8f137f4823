package ftp

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/marmos91/docftp/internal/logger"
)

// TransferError reports a failed data transfer. The control connection is
// still healthy: the closing reply has already been sent and the session may
// continue.
type TransferError struct {
	// Command is the transfer verb (LIST, RETR, STOR).
	Command string

	// Stage is "dial" when the data connection could not be opened and
	// "transfer" when the exchange itself failed.
	Stage string

	Err error
}

// Error implements the error interface.
func (e *TransferError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Command, e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransferError) Unwrap() error {
	return e.Err
}

// transferFunc performs the exchange over an open data connection and reports
// the number of payload bytes moved.
type transferFunc func(ctx context.Context, conn net.Conn) (int64, error)

// withDataConnection runs one active-mode transfer.
//
// Without a pending PORT address it replies 425 and returns: fn never runs and
// nothing is dialed. Otherwise it replies 150, dials the pending address, runs
// fn and closes the data connection before the final reply, 226 on success or
// 426 on failure. Every exit after the 150 sends exactly one final reply.
// Cancelling ctx aborts a stalled transfer with 426.
func (s *Session) withDataConnection(ctx context.Context, command string, fn transferFunc) error {
	if s.dataAddr == "" {
		return s.reply(425, "Use PORT before "+command+".")
	}

	if err := s.reply(150, "Opening data connection."); err != nil {
		return err
	}

	conn, err := s.config.Dialer.DialContext(ctx, "tcp", s.dataAddr)
	if err != nil {
		logger.Debug("FTP session %s: %s dial %s failed: %v", s.ID, command, s.dataAddr, err)
		if rerr := s.reply(425, "Can't open data connection."); rerr != nil {
			return rerr
		}
		return &TransferError{Command: command, Stage: "dial", Err: err}
	}

	// a cancelled ctx closes the data connection so blocked reads and writes return
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })

	start := time.Now()
	n, err := fn(ctx, conn)
	if !stop() {
		err = ctx.Err()
	} else if cerr := conn.Close(); cerr != nil && err == nil {
		err = cerr
	}
	s.recordTransfer(command, n, time.Since(start), err)

	if err != nil {
		if rerr := s.reply(426, "Connection closed; transfer aborted."); rerr != nil {
			return rerr
		}
		return &TransferError{Command: command, Stage: "transfer", Err: err}
	}

	return s.reply(226, "Closing data connection.")
}

func (s *Session) recordTransfer(command string, n int64, d time.Duration, err error) {
	if s.config.Recorder != nil {
		s.config.Recorder.RecordTransfer(command, n, d, err)
	}
}
