package ftp

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePortArgument(t *testing.T) {
	tests := []struct {
		arg     string
		want    string
		wantErr bool
	}{
		{"127,0,0,1,4,1", "127.0.0.1:1025", false},
		{"192,168,1,20,195,80", "192.168.1.20:50000", false},
		{" 10,0,0,1,0,21 ", "10.0.0.1:21", false},
		{"127,0,0,1,0,0", "", true},
		{"127,0,0,1,4", "", true},
		{"127,0,0,1,4,1,1", "", true},
		{"256,0,0,1,4,1", "", true},
		{"127,0,0,1,4,-1", "", true},
		{"a,b,c,d,e,f", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			got, err := ParsePortArgument(tt.arg)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPortArgument)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatPortArgument(t *testing.T) {
	addr := &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 50000}

	arg, err := FormatPortArgument(addr)
	require.NoError(t, err)
	assert.Equal(t, "127,0,0,1,195,80", arg)

	back, err := ParsePortArgument(arg)
	require.NoError(t, err)
	assert.Equal(t, addr.String(), back)

	_, err = FormatPortArgument(&net.TCPAddr{IP: net.ParseIP("::1"), Port: 21})
	assert.ErrorIs(t, err, ErrInvalidPortArgument)
}
