package ftp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/marmos91/docftp/internal/logger"
	"github.com/marmos91/docftp/pkg/backend"
)

// ============================================================================
// Authentication
// ============================================================================

func handleUSER(ctx context.Context, s *Session, args []string) error {
	s.releaseHandle()
	s.username = args[0]
	s.setState(StateAwaitingPassword)
	return s.reply(331, "User name okay, need password.")
}

// handlePASS authenticates against the backend. A rejected password keeps the
// username so the client can simply retry PASS.
func handlePASS(ctx context.Context, s *Session, args []string) error {
	if s.username == "" {
		return s.reply(503, "Login with USER first.")
	}

	h, err := s.config.Backend.Authenticate(ctx, s.username, args[0])
	if err != nil {
		s.setState(StateUnauthenticated)
		if errors.Is(err, backend.ErrAuthFailed) {
			logger.Info("FTP session %s: login failed for %s from %s", s.ID, s.username, s.RemoteAddr)
		} else {
			logger.Warn("FTP session %s: backend authentication error for %s: %v", s.ID, s.username, err)
		}
		return s.reply(530, "Invalid username or password.")
	}

	s.releaseHandle()
	s.handle = h
	s.setState(StateAuthenticated)

	logger.Info("FTP session %s: %s logged in from %s", s.ID, s.username, s.RemoteAddr)
	return s.reply(230, fmt.Sprintf("User %s logged in.", s.username))
}

// ============================================================================
// Connection parameters
// ============================================================================

func handleTYPE(ctx context.Context, s *Session, args []string) error {
	s.transferType = strings.ToUpper(args[0])
	return s.reply(200, "Type set to "+s.transferType+".")
}

func handlePORT(ctx context.Context, s *Session, args []string) error {
	addr, err := ParsePortArgument(args[0])
	if err != nil {
		return s.reply(501, "Syntax error in parameters or arguments.")
	}
	s.dataAddr = addr
	return s.reply(200, "PORT command successful.")
}

// ============================================================================
// Navigation
// ============================================================================

func handlePWD(ctx context.Context, s *Session, args []string) error {
	return s.reply(257, fmt.Sprintf("%q is the current directory.", s.WorkingDirectory()))
}

func handleCWD(ctx context.Context, s *Session, args []string) error {
	return s.changeDirectory(args[0])
}

func handleCDUP(ctx context.Context, s *Session, args []string) error {
	return s.changeDirectory("..")
}

// changeDirectory moves the working directory without checking that the
// target exists.
func (s *Session) changeDirectory(raw string) error {
	db, coll, err := Resolve(s.WorkingDirectory(), raw)
	if err != nil {
		return s.reply(550, "Path too deep: only /database/collection is supported.")
	}
	s.database, s.collection = db, coll
	return s.reply(250, "Directory changed to "+s.WorkingDirectory()+".")
}

// handleMKD creates a collection. Databases cannot be created on their own;
// they come into existence with their first collection.
func handleMKD(ctx context.Context, s *Session, args []string) error {
	db, coll, err := Resolve(s.WorkingDirectory(), args[0])
	if err != nil {
		return s.reply(550, "Path too deep: only /database/collection is supported.")
	}
	if coll == "" {
		return s.reply(550, "Can't create top level directories, create a nested directory.")
	}

	err = s.handle.CreateCollection(ctx, db, coll)
	switch {
	case err == nil, errors.Is(err, backend.ErrAlreadyExists):
	case errors.Is(err, backend.ErrInvalidName):
		return s.reply(553, "Invalid collection name.")
	default:
		logger.Warn("FTP session %s: create collection %s/%s failed: %v", s.ID, db, coll, err)
		return s.reply(451, "Requested action aborted: local error in processing.")
	}

	return s.reply(257, fmt.Sprintf("%q directory created.", WorkingDirectory(db, coll)))
}

// ============================================================================
// Miscellaneous
// ============================================================================

func handleSYST(ctx context.Context, s *Session, args []string) error {
	return s.reply(215, "UNIX Type: L8")
}

func handleNOOP(ctx context.Context, s *Session, args []string) error {
	return s.reply(200, "NOOP ok.")
}

// handleQUIT says goodbye and closes the session. The farewell write error is
// irrelevant since the connection is closing anyway.
func handleQUIT(ctx context.Context, s *Session, args []string) error {
	s.username = ""
	_ = s.reply(221, "Goodbye.")
	return s.Close()
}
