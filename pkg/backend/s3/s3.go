// Package s3 implements a backend on Amazon S3 or a compatible object store.
//
// Mapping:
//   - database   = bucket
//   - collection = top-level key prefix ("<collection>/")
//   - document   = object "<collection>/<id>"
//
// Users log in with an access key ID as username and the secret access key as
// password; the credentials are checked with ListBuckets and every session gets
// its own client.
package s3

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/marmos91/docftp/internal/logger"
	"github.com/marmos91/docftp/pkg/backend"
)

// S3BackendConfig configures an S3Backend.
type S3BackendConfig struct {
	// Region is the AWS region used for signing and bucket creation.
	Region string `mapstructure:"region" validate:"required"`

	// Endpoint overrides the service endpoint (MinIO, Localstack, ...).
	// Path-style addressing is used whenever it is set.
	Endpoint string `mapstructure:"endpoint"`

	// MaxRetries is the number of attempts for transient failures (default: 10).
	MaxRetries int `mapstructure:"max_retries"`

	// MaxDocumentSize rejects stored payloads larger than this many bytes.
	// 0 means unlimited.
	MaxDocumentSize int64 `mapstructure:"max_document_size"`
}

// S3Backend implements backend.Backend over an S3-compatible service.
//
// Thread Safety:
// The backend is immutable after construction. Handles wrap an *s3.Client, which
// is safe for concurrent use.
type S3Backend struct {
	config      S3BackendConfig
	loadOptions []func(*awsConfig.LoadOptions) error
}

// NewS3Backend prepares the AWS configuration shared by all sessions. No network
// call is made until a user authenticates.
func NewS3Backend(ctx context.Context, config S3BackendConfig) (*S3Backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config.Region == "" {
		return nil, fmt.Errorf("s3 backend: region is required")
	}

	var opts []func(*awsConfig.LoadOptions) error
	opts = append(opts, awsConfig.WithRegion(config.Region))

	if config.Endpoint != "" {
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		resolver := aws.EndpointResolverWithOptionsFunc(
			func(service, region string, options ...interface{}) (aws.Endpoint, error) {
				//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
				return aws.Endpoint{
					URL:               config.Endpoint,
					HostnameImmutable: true,
					Source:            aws.EndpointSourceCustom,
				}, nil
			},
		)
		//nolint:staticcheck // TODO: migrate to BaseEndpoint when AWS SDK v2 stabilizes the new API
		opts = append(opts, awsConfig.WithEndpointResolverWithOptions(resolver))
	}

	maxRetries := config.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	opts = append(opts, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	return &S3Backend{config: config, loadOptions: opts}, nil
}

// Authenticate builds a client for the given key pair and verifies it with
// ListBuckets.
func (b *S3Backend) Authenticate(ctx context.Context, username, password string) (backend.Handle, error) {
	if username == "" || password == "" {
		return nil, backend.NewStoreError("authenticate", backend.ErrAuthFailed, username)
	}

	opts := append([]func(*awsConfig.LoadOptions) error{}, b.loadOptions...)
	opts = append(opts, awsConfig.WithCredentialsProvider(
		credentials.NewStaticCredentialsProvider(username, password, ""),
	))

	cfg, err := awsConfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if b.config.Endpoint != "" {
			o.UsePathStyle = true
		}
	})

	if _, err := client.ListBuckets(ctx, &s3.ListBucketsInput{}); err != nil {
		if isAuthError(err) {
			return nil, backend.NewStoreError("authenticate", backend.ErrAuthFailed, username)
		}
		return nil, backend.NewStoreError("authenticate", err, username)
	}

	logger.Debug("S3 session opened: access_key=%s region=%s", username, b.config.Region)

	return &handle{
		client:          client,
		region:          b.config.Region,
		maxDocumentSize: b.config.MaxDocumentSize,
	}, nil
}

// Close implements backend.Backend. Clients are owned by handles.
func (b *S3Backend) Close() error {
	return nil
}

// isAuthError reports whether err is a credential rejection.
func isAuthError(err error) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.ErrorCode() {
	case "InvalidAccessKeyId", "SignatureDoesNotMatch", "AccessDenied", "InvalidClientTokenId":
		return true
	}
	return false
}

// isErrorCode reports whether err is an API error with one of the given codes.
func isErrorCode(err error, codes ...string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	for _, c := range codes {
		if apiErr.ErrorCode() == c {
			return true
		}
	}
	return false
}
