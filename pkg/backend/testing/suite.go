package testing

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/docftp/pkg/backend"
	"github.com/stretchr/testify/require"
)

// BackendTestSuite is a conformance suite for backend.Backend implementations.
// It tests the hierarchy contract the FTP gateway relies on, not implementation
// details, so memory, badger, s3 and mongo all run the same cases.
type BackendTestSuite struct {
	// NewBackend creates a backend for each test.
	NewBackend func(t *testing.T) backend.Backend

	// Username and Password are valid credentials for backends from NewBackend.
	Username string
	Password string

	// DatabasePrefix prefixes the database names the suite creates. Each test
	// uses a fresh name so backends that keep state between NewBackend calls
	// (S3, MongoDB) do not leak data across tests. Defaults to "suite".
	DatabasePrefix string

	// AcceptsAnyPassword marks emulators (Localstack) that do not verify
	// secrets; the wrong-password cases are skipped.
	AcceptsAnyPassword bool
}

// Run executes all tests in the suite.
func (suite *BackendTestSuite) Run(t *testing.T) {
	t.Run("Authentication", suite.RunAuthenticationTests)
	t.Run("Collections", suite.RunCollectionTests)
	t.Run("Documents", suite.RunDocumentTests)
}

// newDatabase returns a database name no previous test has used.
func (suite *BackendTestSuite) newDatabase() string {
	prefix := suite.DatabasePrefix
	if prefix == "" {
		prefix = "suite"
	}
	return prefix + "-" + uuid.NewString()[:8]
}

// login creates a backend and authenticates with the suite credentials.
func (suite *BackendTestSuite) login(t *testing.T) backend.Handle {
	t.Helper()

	b := suite.NewBackend(t)
	t.Cleanup(func() { _ = b.Close() })

	h, err := b.Authenticate(context.Background(), suite.Username, suite.Password)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}
