package testing

import (
	"context"
	"testing"

	"github.com/marmos91/docftp/pkg/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunAuthenticationTests checks credential handling.
func (suite *BackendTestSuite) RunAuthenticationTests(t *testing.T) {
	t.Run("ValidCredentials", func(t *testing.T) {
		b := suite.NewBackend(t)
		defer b.Close()

		h, err := b.Authenticate(context.Background(), suite.Username, suite.Password)
		require.NoError(t, err)
		require.NotNil(t, h)
		assert.NoError(t, h.Close())
	})

	t.Run("WrongPassword", func(t *testing.T) {
		if suite.AcceptsAnyPassword {
			t.Skip("backend does not verify passwords")
		}
		b := suite.NewBackend(t)
		defer b.Close()

		_, err := b.Authenticate(context.Background(), suite.Username, suite.Password+"-wrong")
		assert.ErrorIs(t, err, backend.ErrAuthFailed)
	})

	t.Run("RetryAfterFailure", func(t *testing.T) {
		if suite.AcceptsAnyPassword {
			t.Skip("backend does not verify passwords")
		}
		b := suite.NewBackend(t)
		defer b.Close()

		_, err := b.Authenticate(context.Background(), suite.Username, "nope")
		require.Error(t, err)

		h, err := b.Authenticate(context.Background(), suite.Username, suite.Password)
		require.NoError(t, err)
		assert.NoError(t, h.Close())
	})
}
