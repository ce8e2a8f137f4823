package ftp

import (
	"bytes"
	"context"
	"regexp"

	"github.com/marmos91/docftp/internal/logger"
)

// unknownCommand is the name reported for lines that match no command.
const unknownCommand = "UNKNOWN"

// ============================================================================
// Command Table
// ============================================================================

// Handler processes one matched command. args holds the pattern's capture
// groups in order. A returned error is either a *TransferError (the session
// continues) or a control connection failure (the session ends).
type Handler func(ctx context.Context, s *Session, args []string) error

// Command is an immutable (pattern, handler) pair.
type Command struct {
	// Name is the verb, for logging and metrics.
	Name string

	// Pattern is matched against the line without its terminator.
	Pattern *regexp.Regexp

	// Handler runs when Pattern matches.
	Handler Handler
}

// commandTable is evaluated top to bottom and the first match wins. Order is
// part of the contract: a looser pattern placed earlier would shadow a more
// specific one.
var commandTable []Command

func init() {
	commandTable = []Command{
		{"USER", verb(`USER (\S+)`), handleUSER},
		{"PASS", verb(`PASS(?: (.*))?`), handlePASS},
		{"TYPE", verb(`TYPE ([AI])(?: N)?`), handleTYPE},
		{"PORT", verb(`PORT (.+)`), handlePORT},
		{"PWD", verb(`X?PWD`), requireAuth(handlePWD)},
		{"CDUP", verb(`(?:CDUP|XCUP)`), requireAuth(handleCDUP)},
		{"CWD", verb(`(?:CWD|XCWD) (.+)`), requireAuth(handleCWD)},
		{"MKD", verb(`X?MKD (.+)`), requireAuth(handleMKD)},
		{"LIST", verb(`LIST(?: (.*))?`), requireAuth(handleLIST)},
		{"RETR", verb(`RETR (.+)`), requireAuth(handleRETR)},
		{"STOR", verb(`STOR (.+)`), requireAuth(handleSTOR)},
		{"SYST", verb(`SYST`), handleSYST},
		{"NOOP", verb(`NOOP`), handleNOOP},
		{"QUIT", verb(`QUIT`), handleQUIT},
	}
}

// verb anchors a command pattern and makes the verb case-insensitive.
func verb(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^` + pattern + `$`)
}

// requireAuth guards a handler: outside StateAuthenticated it replies 530 and
// the wrapped handler never runs.
func requireAuth(next Handler) Handler {
	return func(ctx context.Context, s *Session, args []string) error {
		if s.State() != StateAuthenticated {
			return s.reply(530, "Please login with USER and PASS.")
		}
		return next(ctx, s, args)
	}
}

// ============================================================================
// Dispatch
// ============================================================================

// Match returns the first command matching line and its captured arguments.
// Lines containing non-ASCII bytes never match.
func Match(line []byte) (*Command, []string, bool) {
	if !isASCII(line) {
		return nil, nil, false
	}

	text := string(line)
	for i := range commandTable {
		cmd := &commandTable[i]
		m := cmd.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		return cmd, m[1:], true
	}
	return nil, nil, false
}

// Dispatch runs the command on one framed control line and returns the name of
// the command that handled it.
//
// Returns:
//   - nil when the command completed (whatever its reply code)
//   - *TransferError when a data transfer failed; the session stays usable
//   - any other error when the control connection failed; the caller should
//     close the session
func (s *Session) Dispatch(ctx context.Context, line []byte) (string, error) {
	cmd, args, ok := Match(line)
	if !ok {
		logger.Debug("FTP session %s: unrecognized command %q", s.ID, redact(line))
		return unknownCommand, s.reply(502, "Command not implemented.")
	}

	logger.Debug("FTP session %s -> %s", s.ID, redact(line))
	return cmd.Name, cmd.Handler(ctx, s, args)
}

// redact hides the PASS argument in logs.
func redact(line []byte) []byte {
	if len(line) >= 5 && bytes.EqualFold(line[:5], []byte("PASS ")) {
		return []byte("PASS ****")
	}
	return line
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
