package ftp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_LoginAndNavigate(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "331 User name okay, need password.", f.must("USER alice"))
	assert.Equal(t, StateAwaitingPassword, f.session.State())

	assert.Equal(t, "230 User alice logged in.", f.must("PASS secret"))
	assert.Equal(t, StateAuthenticated, f.session.State())

	assert.Equal(t, `257 "/" is the current directory.`, f.must("PWD"))
	assert.Equal(t, "250 Directory changed to /shop/orders.", f.must("CWD /shop/orders"))
	assert.Equal(t, `257 "/shop/orders" is the current directory.`, f.must("PWD"))

	// navigation never touches the backend
	assert.Zero(t, f.backend.count("ListDatabases")+f.backend.count("ListCollections"))
}

func TestSession_ChangeDirectoryUp(t *testing.T) {
	f := newFixture(t)
	f.login()

	f.must("CWD /db/coll")
	f.must("CWD ..")
	assert.Equal(t, "/db", f.session.WorkingDirectory())

	f.must("CWD ..")
	assert.Equal(t, "/", f.session.WorkingDirectory())

	f.must("CWD /db/coll")
	assert.Equal(t, "250 Directory changed to /db.", f.must("CDUP"))
}

func TestSession_ChangeDirectoryTooDeep(t *testing.T) {
	f := newFixture(t)
	f.login()
	f.must("CWD /db/coll")

	assert.Equal(t, "550 Path too deep: only /database/collection is supported.", f.must("CWD sub"))
	assert.Equal(t, "/db/coll", f.session.WorkingDirectory())
}

func TestSession_RetryAfterFailedPassword(t *testing.T) {
	f := newFixture(t)

	f.must("USER alice")
	assert.Equal(t, "530 Invalid username or password.", f.must("PASS wrong"))
	assert.Equal(t, StateUnauthenticated, f.session.State())
	assert.Equal(t, "alice", f.session.Username())

	assert.Equal(t, "230 User alice logged in.", f.must("PASS secret"))
	assert.Equal(t, StateAuthenticated, f.session.State())
	assert.Equal(t, 2, f.backend.count("Authenticate"))
}

func TestSession_EmptyPasswordReachesBackend(t *testing.T) {
	for _, line := range []string{"PASS", "PASS "} {
		t.Run(line, func(t *testing.T) {
			f := newFixture(t)

			f.must("USER alice")
			assert.Equal(t, "530 Invalid username or password.", f.must(line))
			assert.Equal(t, 1, f.backend.count("Authenticate"))
			assert.Equal(t, "230 User alice logged in.", f.must("PASS secret"))
		})
	}
}

func TestSession_PasswordWithoutUser(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "503 Login with USER first.", f.must("PASS secret"))
	assert.Zero(t, f.backend.count("Authenticate"))
}

func TestSession_UserResetsAuthentication(t *testing.T) {
	f := newFixture(t)
	f.login()

	f.must("USER bob")
	assert.Equal(t, StateAwaitingPassword, f.session.State())
	assert.Equal(t, 1, f.backend.count("Close"), "previous handle must be released")
	assert.Equal(t, "530 Please login with USER and PASS.", f.must("PWD"))
}

func TestSession_MakeDirectory(t *testing.T) {
	t.Run("TopLevelRejected", func(t *testing.T) {
		f := newFixture(t)
		f.login()

		assert.Equal(t, "550 Can't create top level directories, create a nested directory.", f.must("MKD /shop"))
		assert.Zero(t, f.backend.count("CreateCollection"))
	})

	t.Run("NestedCreatesOnce", func(t *testing.T) {
		f := newFixture(t)
		f.login()

		assert.Equal(t, `257 "/shop/orders" directory created.`, f.must("MKD /shop/orders"))
		assert.Equal(t, 1, f.backend.count("CreateCollection"))
	})

	t.Run("RelativeToDatabase", func(t *testing.T) {
		f := newFixture(t)
		f.login()
		f.must("CWD /shop")

		assert.Equal(t, `257 "/shop/orders" directory created.`, f.must("MKD orders"))
	})

	t.Run("ExistingIsSuccess", func(t *testing.T) {
		f := newFixture(t)
		f.login()

		f.must("MKD /shop/orders")
		assert.Equal(t, `257 "/shop/orders" directory created.`, f.must("MKD /shop/orders"))
		assert.Equal(t, 2, f.backend.count("CreateCollection"))
	})

	t.Run("TooDeep", func(t *testing.T) {
		f := newFixture(t)
		f.login()

		assert.Equal(t, "550 Path too deep: only /database/collection is supported.", f.must("MKD /a/b/c"))
		assert.Zero(t, f.backend.count("CreateCollection"))
	})

	t.Run("BackendError", func(t *testing.T) {
		f := newFixture(t)
		f.login()
		f.backend.failWith = assert.AnError

		assert.Equal(t, "451 Requested action aborted: local error in processing.", f.must("MKD /shop/orders"))
	})
}

func TestSession_Miscellaneous(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "215 UNIX Type: L8", f.must("SYST"))
	assert.Equal(t, "200 NOOP ok.", f.must("NOOP"))
	assert.Equal(t, "200 Type set to I.", f.must("TYPE I"))
	assert.Equal(t, "200 PORT command successful.", f.must("PORT 127,0,0,1,4,1"))
	assert.Equal(t, "127.0.0.1:1025", f.session.DataAddress())
	assert.Equal(t, "501 Syntax error in parameters or arguments.", f.must("PORT 1,2,3"))
	assert.Equal(t, "127.0.0.1:1025", f.session.DataAddress(), "bad PORT keeps the previous address")
}

func TestSession_Quit(t *testing.T) {
	f := newFixture(t)
	f.login()

	require.NoError(t, f.send("QUIT"))
	assert.Equal(t, "221 Goodbye.", f.control.last())
	assert.Equal(t, StateClosed, f.session.State())
	assert.Equal(t, 1, f.control.closed)
	assert.Equal(t, 1, f.backend.count("Close"))

	// Close is idempotent
	require.NoError(t, f.session.Close())
	assert.Equal(t, 1, f.control.closed)
	assert.Equal(t, 1, f.backend.count("Close"))
}

func TestSession_ClosedStateIsTerminal(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.session.Close())

	f.session.setState(StateAuthenticated)
	assert.Equal(t, StateClosed, f.session.State())
}

func TestSession_ReplyWriteFailure(t *testing.T) {
	s := NewSession(failingWriter{}, "127.0.0.1:1", SessionConfig{Backend: newRecordingBackend(t)})

	_, err := s.Dispatch(t.Context(), []byte("NOOP"))
	require.Error(t, err)

	var transferErr *TransferError
	assert.NotErrorAs(t, err, &transferErr)
}

func TestSession_NotifyShutdown(t *testing.T) {
	f := newFixture(t)
	f.login()

	require.NoError(t, f.session.NotifyShutdown())
	assert.Equal(t, "421 Service not available, closing control connection.", f.control.last())
}

func TestSession_IDsAreUnique(t *testing.T) {
	a := NewSession(&controlBuffer{}, "", SessionConfig{})
	b := NewSession(&controlBuffer{}, "", SessionConfig{})
	assert.NotEqual(t, a.ID, b.ID)
	assert.Len(t, a.ID, 36)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unauthenticated", StateUnauthenticated.String())
	assert.Equal(t, "awaiting-password", StateAwaitingPassword.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "State(9)", State(9).String())
}
