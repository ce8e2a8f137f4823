// Package memory implements an ephemeral in-memory backend.
//
// Data lives only as long as the process. Databases exist implicitly while they
// contain at least one collection, mirroring document databases where a
// database is created by creating its first collection.
package memory

import (
	"context"
	"sync"

	"github.com/marmos91/docftp/pkg/backend"
)

// MemoryBackendConfig configures a MemoryBackend.
type MemoryBackendConfig struct {
	// Users are the accounts allowed to log in.
	Users []backend.User

	// MaxDocumentSize rejects stored payloads larger than this many bytes.
	// 0 means unlimited.
	MaxDocumentSize int64
}

type record struct {
	kind backend.ContentKind
	data []byte
}

type collection struct {
	order []string
	docs  map[string]record
}

type database struct {
	order       []string
	collections map[string]*collection
}

// MemoryBackend keeps databases, collections and documents in maps guarded by a
// single RWMutex. Listings return entries in insertion order.
type MemoryBackend struct {
	users           *backend.UserTable
	maxDocumentSize int64

	mu        sync.RWMutex
	order     []string
	databases map[string]*database
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend(config MemoryBackendConfig) (*MemoryBackend, error) {
	users, err := backend.NewUserTable(config.Users)
	if err != nil {
		return nil, err
	}

	return &MemoryBackend{
		users:           users,
		maxDocumentSize: config.MaxDocumentSize,
		databases:       make(map[string]*database),
	}, nil
}

// Authenticate implements backend.Backend.
func (b *MemoryBackend) Authenticate(ctx context.Context, username, password string) (backend.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.users.Verify(username, password); err != nil {
		return nil, backend.NewStoreError("authenticate", err, username)
	}
	return &handle{b: b}, nil
}

// Close implements backend.Backend.
func (b *MemoryBackend) Close() error {
	return nil
}

// handle is the per-session view. The memory backend has no per-user state, so
// every handle shares the same maps.
type handle struct {
	b *MemoryBackend
}

func (h *handle) ListDatabases(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.b.mu.RLock()
	defer h.b.mu.RUnlock()

	return append([]string(nil), h.b.order...), nil
}

func (h *handle) ListCollections(ctx context.Context, db string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.b.mu.RLock()
	defer h.b.mu.RUnlock()

	d, ok := h.b.databases[db]
	if !ok {
		return nil, backend.NewStoreError("list collections", backend.ErrNotFound, db)
	}
	return append([]string(nil), d.order...), nil
}

func (h *handle) ListDocuments(ctx context.Context, db, coll string) ([]backend.DocumentInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.b.mu.RLock()
	defer h.b.mu.RUnlock()

	c, err := h.b.lookup(db, coll)
	if err != nil {
		return nil, backend.NewStoreError("list documents", err, db, coll)
	}

	docs := make([]backend.DocumentInfo, 0, len(c.order))
	for _, id := range c.order {
		docs = append(docs, backend.DocumentInfo{ID: id, Size: int64(len(c.docs[id].data))})
	}
	return docs, nil
}

func (h *handle) FetchContent(ctx context.Context, db, coll, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.b.mu.RLock()
	defer h.b.mu.RUnlock()

	c, err := h.b.lookup(db, coll)
	if err != nil {
		return nil, backend.NewStoreError("fetch", err, db, coll, id)
	}
	rec, ok := c.docs[id]
	if !ok {
		return nil, backend.NewStoreError("fetch", backend.ErrNotFound, db, coll, id)
	}
	return append([]byte(nil), rec.data...), nil
}

func (h *handle) StoreContent(ctx context.Context, db, coll, id string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, name := range []string{db, coll, id} {
		if err := backend.ValidateName(name); err != nil {
			return backend.NewStoreError("store", err, db, coll, id)
		}
	}
	if h.b.maxDocumentSize > 0 && int64(len(data)) > h.b.maxDocumentSize {
		return backend.NewStoreError("store", errDocumentTooLarge, db, coll, id)
	}

	kind, stored := backend.Classify(data)

	h.b.mu.Lock()
	defer h.b.mu.Unlock()

	c := h.b.ensureCollection(db, coll)
	if _, exists := c.docs[id]; !exists {
		c.order = append(c.order, id)
	}
	c.docs[id] = record{kind: kind, data: append([]byte(nil), stored...)}
	return nil
}

func (h *handle) CreateCollection(ctx context.Context, db, coll string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, name := range []string{db, coll} {
		if err := backend.ValidateName(name); err != nil {
			return backend.NewStoreError("create collection", err, db, coll)
		}
	}

	h.b.mu.Lock()
	defer h.b.mu.Unlock()

	if _, err := h.b.lookup(db, coll); err == nil {
		return backend.NewStoreError("create collection", backend.ErrAlreadyExists, db, coll)
	}
	h.b.ensureCollection(db, coll)
	return nil
}

func (h *handle) Close() error {
	return nil
}

// lookup must be called with mu held.
func (b *MemoryBackend) lookup(db, coll string) (*collection, error) {
	d, ok := b.databases[db]
	if !ok {
		return nil, backend.ErrNotFound
	}
	c, ok := d.collections[coll]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return c, nil
}

// ensureCollection must be called with mu held for writing.
func (b *MemoryBackend) ensureCollection(db, coll string) *collection {
	d, ok := b.databases[db]
	if !ok {
		d = &database{collections: make(map[string]*collection)}
		b.databases[db] = d
		b.order = append(b.order, db)
	}
	c, ok := d.collections[coll]
	if !ok {
		c = &collection{docs: make(map[string]record)}
		d.collections[coll] = c
		d.order = append(d.order, coll)
	}
	return c
}
