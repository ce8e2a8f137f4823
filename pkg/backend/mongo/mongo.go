// Package mongo implements the backend over a MongoDB deployment.
//
// Every FTP session opens its own client with the user's credentials, so
// authorization is enforced by the server itself. Structured documents are
// exchanged as relaxed Extended JSON; any other payload is stored as a document
// holding a single binary field (see blobField).
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marmos91/docftp/internal/logger"
	"github.com/marmos91/docftp/pkg/backend"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// DefaultAuthMechanism matches what MongoDB 4.0+ negotiates for new users.
	DefaultAuthMechanism = "SCRAM-SHA-256"

	// DefaultAuthSource is the database holding user credentials.
	DefaultAuthSource = "admin"

	// DefaultConnectTimeout bounds connection and the login ping.
	DefaultConnectTimeout = 10 * time.Second

	codeAuthenticationFailed = 18
	codeNamespaceExists      = 48
)

// MongoBackendConfig configures a MongoBackend.
type MongoBackendConfig struct {
	// URI is the connection string without credentials,
	// e.g. mongodb://127.0.0.1:27017.
	URI string `mapstructure:"uri" validate:"required"`

	// AuthMechanism is the SASL mechanism (default: SCRAM-SHA-256).
	AuthMechanism string `mapstructure:"auth_mechanism"`

	// AuthSource is the database users authenticate against (default: admin).
	AuthSource string `mapstructure:"auth_source"`

	// ConnectTimeout bounds connection establishment and the login ping.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`

	// MaxDocumentSize rejects stored payloads larger than this many bytes.
	// 0 means unlimited (the server still enforces its 16MB document limit).
	MaxDocumentSize int64 `mapstructure:"max_document_size"`
}

// MongoBackend implements backend.Backend.
//
// Thread Safety:
// Immutable after construction. Each handle owns a *mongo.Client, which is safe
// for concurrent use.
type MongoBackend struct {
	config MongoBackendConfig
}

// NewMongoBackend validates the configuration and applies defaults. Connections
// are only opened on Authenticate.
func NewMongoBackend(ctx context.Context, config MongoBackendConfig) (*MongoBackend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if config.URI == "" {
		return nil, fmt.Errorf("mongo backend: uri is required")
	}
	if config.AuthMechanism == "" {
		config.AuthMechanism = DefaultAuthMechanism
	}
	if config.AuthSource == "" {
		config.AuthSource = DefaultAuthSource
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	return &MongoBackend{config: config}, nil
}

// Authenticate connects with the given credentials and pings the primary.
func (b *MongoBackend) Authenticate(ctx context.Context, username, password string) (backend.Handle, error) {
	opts := options.Client().
		ApplyURI(b.config.URI).
		SetConnectTimeout(b.config.ConnectTimeout).
		SetServerSelectionTimeout(b.config.ConnectTimeout).
		SetAuth(options.Credential{
			Username:      username,
			Password:      password,
			AuthMechanism: b.config.AuthMechanism,
			AuthSource:    b.config.AuthSource,
		})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, backend.NewStoreError("authenticate", err, username)
	}

	pingCtx, cancel := context.WithTimeout(ctx, b.config.ConnectTimeout)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		if isAuthError(err) {
			return nil, backend.NewStoreError("authenticate", backend.ErrAuthFailed, username)
		}
		return nil, backend.NewStoreError("authenticate", err, username)
	}

	logger.Debug("MongoDB session opened: user=%s mechanism=%s", username, b.config.AuthMechanism)

	return &handle{client: client, maxDocumentSize: b.config.MaxDocumentSize}, nil
}

// Close implements backend.Backend. Clients are owned by handles.
func (b *MongoBackend) Close() error {
	return nil
}

// isAuthError reports whether err is a credential rejection. Handshake failures
// surface as wrapped connection errors rather than command errors, so the
// message is checked as well.
func isAuthError(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code == codeAuthenticationFailed {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "AuthenticationFailed") || strings.Contains(msg, "auth error")
}

func isNamespaceExists(err error) bool {
	var cmdErr mongo.CommandError
	return errors.As(err, &cmdErr) && cmdErr.Code == codeNamespaceExists
}
