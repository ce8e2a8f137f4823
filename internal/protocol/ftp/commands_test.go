package ftp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		line     string
		wantName string
		wantArgs []string
	}{
		{"USER alice", "USER", []string{"alice"}},
		{"user alice", "USER", []string{"alice"}},
		{"PASS s3cret with spaces", "PASS", []string{"s3cret with spaces"}},
		{"PASS", "PASS", []string{""}},
		{"PASS ", "PASS", []string{""}},
		{"TYPE I", "TYPE", []string{"I"}},
		{"TYPE A N", "TYPE", []string{"A"}},
		{"PORT 127,0,0,1,4,1", "PORT", []string{"127,0,0,1,4,1"}},
		{"PWD", "PWD", []string{}},
		{"XPWD", "PWD", []string{}},
		{"CDUP", "CDUP", []string{}},
		{"CWD /shop/orders", "CWD", []string{"/shop/orders"}},
		{"MKD orders", "MKD", []string{"orders"}},
		{"LIST", "LIST", []string{""}},
		{"LIST -la /shop", "LIST", []string{"-la /shop"}},
		{"RETR o-1", "RETR", []string{"o-1"}},
		{"STOR o-1.json", "STOR", []string{"o-1.json"}},
		{"SYST", "SYST", []string{}},
		{"noop", "NOOP", []string{}},
		{"QUIT", "QUIT", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, args, ok := Match([]byte(tt.line))
			require.True(t, ok)
			assert.Equal(t, tt.wantName, cmd.Name)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func TestMatch_Unmatched(t *testing.T) {
	lines := []string{
		"",
		"FEAT",
		"PASV",
		"TYPE E",
		"USER",
		"NOOP extra",
		"QUITNOW",
		"USER ali\xe9",
		"CWD /caf\xc3\xa9",
	}

	for _, line := range lines {
		_, _, ok := Match([]byte(line))
		assert.False(t, ok, "%q should not match", line)
	}
}

func TestCommandTable_Order(t *testing.T) {
	// Each verb must be reachable: no earlier entry may shadow it.
	for _, cmd := range commandTable {
		line := map[string]string{
			"USER": "USER u", "PASS": "PASS p", "TYPE": "TYPE I",
			"PORT": "PORT 1,2,3,4,5,6", "PWD": "PWD", "CDUP": "CDUP",
			"CWD": "CWD d", "MKD": "MKD d", "LIST": "LIST",
			"RETR": "RETR f", "STOR": "STOR f", "SYST": "SYST",
			"NOOP": "NOOP", "QUIT": "QUIT",
		}[cmd.Name]
		require.NotEmpty(t, line, "no sample line for %s", cmd.Name)

		got, _, ok := Match([]byte(line))
		require.True(t, ok)
		assert.Equal(t, cmd.Name, got.Name)
	}
}

func TestDispatch_UnknownCommand(t *testing.T) {
	f := newFixture(t)

	name, err := f.session.Dispatch(f.ctx, []byte("FEAT"))
	require.NoError(t, err)
	assert.Equal(t, unknownCommand, name)
	assert.Equal(t, "502 Command not implemented.", f.control.last())
	assert.Equal(t, StateUnauthenticated, f.session.State())
}

func TestDispatch_NonASCIIIsUnmatched(t *testing.T) {
	f := newFixture(t)
	f.login()

	assert.Equal(t, "502 Command not implemented.", f.must("CWD /caf\xc3\xa9"))
	assert.Equal(t, "/", f.session.WorkingDirectory())
}

func TestRequireAuth_NoSideEffects(t *testing.T) {
	lines := []string{
		"PWD", "CWD /shop/orders", "CDUP", "MKD /shop/orders",
		"LIST", "RETR o-1", "STOR o-1",
	}

	for _, line := range lines {
		t.Run(line, func(t *testing.T) {
			f := newFixture(t)
			f.must("PORT 127,0,0,1,4,1")
			f.control.Reset()

			assert.Equal(t, "530 Please login with USER and PASS.", f.must(line))
			assert.Zero(t, f.backend.total(), "backend must not be called")
			assert.Empty(t, f.dialer.dials(), "no data connection may be opened")
			assert.Equal(t, "/", f.session.WorkingDirectory())
		})
	}
}

func TestRequireAuth_AwaitingPassword(t *testing.T) {
	f := newFixture(t)
	f.must("USER alice")

	assert.Equal(t, "530 Please login with USER and PASS.", f.must("PWD"))
	assert.Equal(t, StateAwaitingPassword, f.session.State())
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "PASS ****", string(redact([]byte("PASS hunter2"))))
	assert.Equal(t, "PASS ****", string(redact([]byte("pass hunter2"))))
	assert.Equal(t, "USER alice", string(redact([]byte("USER alice"))))
}
