// Package instrumented wraps a backend.Backend so every call is reported to a
// metrics.BackendMetrics.
package instrumented

import (
	"context"
	"time"

	"github.com/marmos91/docftp/pkg/backend"
	"github.com/marmos91/docftp/pkg/metrics"
)

// Wrap returns b reporting to m. A nil m returns b unchanged.
func Wrap(b backend.Backend, m metrics.BackendMetrics) backend.Backend {
	if m == nil {
		return b
	}
	return &instrumentedBackend{inner: b, metrics: m}
}

type instrumentedBackend struct {
	inner   backend.Backend
	metrics metrics.BackendMetrics
}

func (b *instrumentedBackend) Authenticate(ctx context.Context, username, password string) (backend.Handle, error) {
	start := time.Now()
	h, err := b.inner.Authenticate(ctx, username, password)
	b.metrics.RecordOperation("Authenticate", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &instrumentedHandle{inner: h, metrics: b.metrics}, nil
}

func (b *instrumentedBackend) Close() error {
	return b.inner.Close()
}

type instrumentedHandle struct {
	inner   backend.Handle
	metrics metrics.BackendMetrics
}

func (h *instrumentedHandle) observe(op string, start time.Time, err error) {
	h.metrics.RecordOperation(op, time.Since(start), err)
}

func (h *instrumentedHandle) ListDatabases(ctx context.Context) ([]string, error) {
	start := time.Now()
	names, err := h.inner.ListDatabases(ctx)
	h.observe("ListDatabases", start, err)
	return names, err
}

func (h *instrumentedHandle) ListCollections(ctx context.Context, db string) ([]string, error) {
	start := time.Now()
	names, err := h.inner.ListCollections(ctx, db)
	h.observe("ListCollections", start, err)
	return names, err
}

func (h *instrumentedHandle) ListDocuments(ctx context.Context, db, coll string) ([]backend.DocumentInfo, error) {
	start := time.Now()
	docs, err := h.inner.ListDocuments(ctx, db, coll)
	h.observe("ListDocuments", start, err)
	return docs, err
}

func (h *instrumentedHandle) FetchContent(ctx context.Context, db, coll, id string) ([]byte, error) {
	start := time.Now()
	data, err := h.inner.FetchContent(ctx, db, coll, id)
	h.observe("FetchContent", start, err)
	if err == nil {
		h.metrics.RecordBytes("fetch", int64(len(data)))
	}
	return data, err
}

func (h *instrumentedHandle) StoreContent(ctx context.Context, db, coll, id string, data []byte) error {
	start := time.Now()
	err := h.inner.StoreContent(ctx, db, coll, id, data)
	h.observe("StoreContent", start, err)
	if err == nil {
		h.metrics.RecordBytes("store", int64(len(data)))
	}
	return err
}

func (h *instrumentedHandle) CreateCollection(ctx context.Context, db, coll string) error {
	start := time.Now()
	err := h.inner.CreateCollection(ctx, db, coll)
	h.observe("CreateCollection", start, err)
	return err
}

func (h *instrumentedHandle) Close() error {
	return h.inner.Close()
}
