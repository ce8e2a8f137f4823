// Package backend defines the hierarchy port the FTP gateway uses to reach a
// document store.
//
// A backend exposes a two-level hierarchy of containers (databases and their
// collections) whose leaves are documents. The FTP layer renders containers as
// directories and documents as files; it never interprets document content beyond
// deciding whether a payload is a structured document or opaque bytes.
//
// Implementations:
//   - memory: ephemeral, for development and tests
//   - badger: persistent embedded store
//   - s3: buckets as databases, key prefixes as collections
//   - mongo: MongoDB databases, collections and documents
package backend

import (
	"context"
)

// Backend authenticates users and hands out per-session handles.
//
// Thread safety:
// Authenticate is called concurrently from many control connections and must be
// safe for concurrent use.
type Backend interface {
	// Authenticate validates the credentials and returns a handle owned by the
	// calling session. Wrong credentials must yield an error matching ErrAuthFailed.
	Authenticate(ctx context.Context, username, password string) (Handle, error)

	// Close releases resources held by the backend itself (not by handles).
	Close() error
}

// Handle is an authenticated view of the backend.
//
// A handle is owned by exactly one session and used only from that session's
// goroutine, so implementations need not make a single handle safe for concurrent
// use. Different handles of the same backend are used concurrently.
type Handle interface {
	// ListDatabases returns database names in backend order.
	ListDatabases(ctx context.Context) ([]string, error)

	// ListCollections returns the collections of database in backend order.
	ListCollections(ctx context.Context, database string) ([]string, error)

	// ListDocuments returns identifier and byte size of every document in the
	// collection, in backend order.
	ListDocuments(ctx context.Context, database, collection string) ([]DocumentInfo, error)

	// FetchContent returns the raw content of a document: the structured
	// serialization for documents, the stored payload verbatim for opaque content.
	FetchContent(ctx context.Context, database, collection, id string) ([]byte, error)

	// StoreContent upserts data under id. Payloads for which IsStructured is true
	// are stored as structured documents, anything else as opaque content.
	StoreContent(ctx context.Context, database, collection, id string, data []byte) error

	// CreateCollection creates a collection (and its database if needed).
	// Implementations may return an error matching ErrAlreadyExists when the
	// collection is already present; callers treat that as success.
	CreateCollection(ctx context.Context, database, collection string) error

	// Close releases the handle. Called once when the owning session ends.
	Close() error
}

// DocumentInfo describes a leaf entity for directory listings.
type DocumentInfo struct {
	// ID is the document identifier, rendered as the file name.
	ID string

	// Size is the backend-reported size in bytes.
	Size int64
}
