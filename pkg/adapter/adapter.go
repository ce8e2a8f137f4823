package adapter

import (
	"context"

	"github.com/marmos91/docftp/pkg/backend"
)

// Adapter is a protocol front end managed by GatewayServer.
//
// Lifecycle:
//  1. Creation: the adapter is built from its protocol configuration
//  2. Backend injection: SetBackend() provides the shared document backend
//  3. Startup: Serve() accepts clients and blocks until shutdown
//  4. Shutdown: Stop() drains connections within the context deadline
//
// Thread safety:
// SetBackend() is called once before Serve(). Stop() may be called
// concurrently with Serve() and more than once.
type Adapter interface {
	// Serve runs the protocol server until ctx is cancelled or an
	// unrecoverable error occurs.
	//
	// Returns nil or context.Canceled on graceful shutdown. Any other return
	// before cancellation is treated as fatal by GatewayServer.
	Serve(ctx context.Context) error

	// SetBackend injects the backend used to authenticate sessions.
	SetBackend(b backend.Backend)

	// Stop initiates graceful shutdown. Idempotent.
	Stop(ctx context.Context) error

	// Protocol returns the protocol name used in logs and metrics ("FTP").
	Protocol() string

	// Port returns the bound port once listening, otherwise the configured one.
	Port() int
}
