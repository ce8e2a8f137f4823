package s3

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/marmos91/docftp/pkg/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3Backend_RequiresRegion(t *testing.T) {
	_, err := NewS3Backend(context.Background(), S3BackendConfig{})
	require.Error(t, err)

	b, err := NewS3Backend(context.Background(), S3BackendConfig{Region: "us-east-1"})
	require.NoError(t, err)
	assert.NoError(t, b.Close())
}

func TestAuthenticate_EmptyCredentials(t *testing.T) {
	b, err := NewS3Backend(context.Background(), S3BackendConfig{Region: "us-east-1"})
	require.NoError(t, err)

	_, err = b.Authenticate(context.Background(), "", "")
	assert.ErrorIs(t, err, backend.ErrAuthFailed)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		auth     bool
		notFound bool
	}{
		{"invalid key", &smithy.GenericAPIError{Code: "InvalidAccessKeyId"}, true, false},
		{"bad signature", &smithy.GenericAPIError{Code: "SignatureDoesNotMatch"}, true, false},
		{"missing key", &smithy.GenericAPIError{Code: "NoSuchKey"}, false, true},
		{"missing bucket", &smithy.GenericAPIError{Code: "NoSuchBucket"}, false, true},
		{"throttled", &smithy.GenericAPIError{Code: "SlowDown"}, false, false},
		{"plain", errors.New("boom"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.auth, isAuthError(tt.err))
			assert.Equal(t, tt.notFound, errors.Is(translate(tt.err), backend.ErrNotFound))
		})
	}
}

func TestObjectKeys(t *testing.T) {
	assert.Equal(t, "orders/", collectionPrefix("orders"))
	assert.Equal(t, "orders/o-1", objectKey("orders", "o-1"))
}
