//go:build integration

package s3_test

import (
	"context"
	"os"
	"testing"

	"github.com/marmos91/docftp/pkg/backend"
	"github.com/marmos91/docftp/pkg/backend/s3"
	backendtesting "github.com/marmos91/docftp/pkg/backend/testing"
	"github.com/stretchr/testify/require"
)

// TestS3Backend runs the conformance suite against an S3-compatible endpoint,
// Localstack by default:
//
//	docker run -p 4566:4566 localstack/localstack
//	go test -tags integration ./pkg/backend/s3/...
func TestS3Backend(t *testing.T) {
	endpoint := os.Getenv("DOCFTP_S3_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}
	accessKey := envOr("DOCFTP_S3_ACCESS_KEY", "test")
	secretKey := envOr("DOCFTP_S3_SECRET_KEY", "test")

	suite := &backendtesting.BackendTestSuite{
		NewBackend: func(t *testing.T) backend.Backend {
			b, err := s3.NewS3Backend(context.Background(), s3.S3BackendConfig{
				Region:     "us-east-1",
				Endpoint:   endpoint,
				MaxRetries: 2,
			})
			require.NoError(t, err)
			return b
		},
		Username:           accessKey,
		Password:           secretKey,
		DatabasePrefix:     "docftp-it",
		AcceptsAnyPassword: true,
	}
	suite.Run(t)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
