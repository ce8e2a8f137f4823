package ftp

import (
	"errors"
	"net/textproto"
	"testing"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The stock client only speaks passive mode for transfers, so these tests stay
// on the control channel.

func dialFTP(t *testing.T, addr string) *ftp.ServerConn {
	t.Helper()
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(testTimeout), ftp.DialWithDisabledEPSV(true))
	require.NoError(t, err)
	return conn
}

func TestFTPClient_Navigation(t *testing.T) {
	a := startAdapter(t, testConfig(), nil)
	conn := dialFTP(t, a.address())

	require.NoError(t, conn.Login("alice", "secret"))

	dir, err := conn.CurrentDir()
	require.NoError(t, err)
	assert.Equal(t, "/", dir)

	require.NoError(t, conn.MakeDir("/hr/employees"))
	require.NoError(t, conn.ChangeDir("/hr/employees"))

	dir, err = conn.CurrentDir()
	require.NoError(t, err)
	assert.Equal(t, "/hr/employees", dir)

	require.NoError(t, conn.ChangeDirToParent())
	dir, err = conn.CurrentDir()
	require.NoError(t, err)
	assert.Equal(t, "/hr", dir)

	require.NoError(t, conn.NoOp())
	require.NoError(t, conn.Quit())

	require.Eventually(t, func() bool { return a.GetActiveConnections() == 0 }, testTimeout, 10*time.Millisecond)
}

func TestFTPClient_RejectsBadPassword(t *testing.T) {
	a := startAdapter(t, testConfig(), nil)
	conn := dialFTP(t, a.address())
	defer conn.Quit()

	err := conn.Login("alice", "nope")
	require.Error(t, err)

	var protoErr *textproto.Error
	require.True(t, errors.As(err, &protoErr))
	assert.Equal(t, ftp.StatusNotLoggedIn, protoErr.Code)

	require.NoError(t, conn.Login("alice", "secret"))
}

func TestFTPClient_TopLevelMakeDirRefused(t *testing.T) {
	a := startAdapter(t, testConfig(), nil)
	conn := dialFTP(t, a.address())
	defer conn.Quit()
	require.NoError(t, conn.Login("alice", "secret"))

	err := conn.MakeDir("/toplevel")
	require.Error(t, err)

	var protoErr *textproto.Error
	require.True(t, errors.As(err, &protoErr))
	assert.Equal(t, ftp.StatusFileUnavailable, protoErr.Code)
}
