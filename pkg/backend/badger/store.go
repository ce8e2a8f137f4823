// Package badger implements a persistent backend on BadgerDB.
//
// Collections and documents are stored under prefixed keys (see keys.go), so
// listing a collection is a single prefix scan. Credentials come from the
// configured user table, as with the memory backend.
package badger

import (
	"context"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/docftp/pkg/backend"
)

// BadgerBackendConfig configures a BadgerBackend.
type BadgerBackendConfig struct {
	// DBPath is the directory where BadgerDB stores its files.
	DBPath string `mapstructure:"db_path"`

	// InMemory runs BadgerDB without touching disk. DBPath is ignored.
	InMemory bool `mapstructure:"in_memory"`

	// MaxDocumentSize rejects stored payloads larger than this many bytes.
	// 0 means unlimited.
	MaxDocumentSize int64 `mapstructure:"max_document_size"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64).
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// Users are the accounts allowed to log in.
	Users []backend.User `mapstructure:"-"`
}

// BadgerBackend implements backend.Backend using BadgerDB for persistence.
//
// Thread Safety:
// BadgerDB transactions are MVCC-isolated, so the backend holds no locks of its
// own. CreateCollection runs in an update transaction and reports
// ErrAlreadyExists on conflict.
type BadgerBackend struct {
	db              *badgerdb.DB
	users           *backend.UserTable
	maxDocumentSize int64
}

// NewBadgerBackend opens (or creates) a BadgerDB database.
//
// Parameters:
//   - ctx: Context for cancellation
//   - config: Database location, limits and users
//
// Returns:
//   - *BadgerBackend: A backend ready for use
//   - error: Error if the user table is invalid or BadgerDB cannot be opened
func NewBadgerBackend(ctx context.Context, config BadgerBackendConfig) (*BadgerBackend, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	users, err := backend.NewUserTable(config.Users)
	if err != nil {
		return nil, err
	}

	var opts badgerdb.Options
	if config.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badgerdb.DefaultOptions(config.DBPath)
	}
	opts = opts.WithLoggingLevel(badgerdb.WARNING)
	opts = opts.WithCompression(options.None)

	blockCacheMB := config.BlockCacheSizeMB
	if blockCacheMB == 0 {
		blockCacheMB = 64
	}
	opts = opts.WithBlockCacheSize(blockCacheMB << 20)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	return &BadgerBackend{
		db:              db,
		users:           users,
		maxDocumentSize: config.MaxDocumentSize,
	}, nil
}

// Authenticate implements backend.Backend.
func (b *BadgerBackend) Authenticate(ctx context.Context, username, password string) (backend.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.users.Verify(username, password); err != nil {
		return nil, backend.NewStoreError("authenticate", err, username)
	}
	return &handle{b: b}, nil
}

// Close closes the underlying database.
func (b *BadgerBackend) Close() error {
	return b.db.Close()
}

type handle struct {
	b *BadgerBackend
}

func (h *handle) ListDatabases(ctx context.Context) ([]string, error) {
	var dbs []string

	err := h.b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixCollection)

		it := txn.NewIterator(opts)
		defer it.Close()

		last := ""
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			db, _, ok := splitCollectionKey(it.Item().Key())
			if !ok || db == last {
				continue
			}
			dbs = append(dbs, db)
			last = db
		}
		return nil
	})
	if err != nil {
		return nil, backend.NewStoreError("list databases", err)
	}
	return dbs, nil
}

func (h *handle) ListCollections(ctx context.Context, db string) ([]string, error) {
	var colls []string

	err := h.b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyCollectionPrefix(db)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, coll, ok := splitCollectionKey(it.Item().Key()); ok {
				colls = append(colls, coll)
			}
		}
		return nil
	})
	if err != nil {
		return nil, backend.NewStoreError("list collections", err, db)
	}
	if len(colls) == 0 {
		return nil, backend.NewStoreError("list collections", backend.ErrNotFound, db)
	}
	return colls, nil
}

func (h *handle) ListDocuments(ctx context.Context, db, coll string) ([]backend.DocumentInfo, error) {
	docs := []backend.DocumentInfo{}

	err := h.b.db.View(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get(keyCollection(db, coll)); err != nil {
			return translate(err)
		}

		prefix := keyDocumentPrefix(db, coll)
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := item.Key()
			if len(key) <= len(prefix) {
				continue
			}
			size := item.ValueSize() - 1
			if size < 0 {
				size = 0
			}
			docs = append(docs, backend.DocumentInfo{
				ID:   string(key[len(prefix):]),
				Size: size,
			})
		}
		return nil
	})
	if err != nil {
		return nil, backend.NewStoreError("list documents", err, db, coll)
	}
	return docs, nil
}

func (h *handle) FetchContent(ctx context.Context, db, coll, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var data []byte
	err := h.b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyDocument(db, coll, id))
		if err != nil {
			return translate(err)
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return fmt.Errorf("corrupt value: missing kind byte")
			}
			data = append([]byte(nil), val[1:]...)
			return nil
		})
	})
	if err != nil {
		return nil, backend.NewStoreError("fetch", err, db, coll, id)
	}
	return data, nil
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

	err := h.b.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set(keyCollection(db, coll), nil); err != nil {
			return err
		}
		return txn.Set(keyDocument(db, coll, id), encodeValue(byte(kind), stored))
	})
	if err != nil {
		return backend.NewStoreError("store", err, db, coll, id)
	}
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

	err := h.b.db.Update(func(txn *badgerdb.Txn) error {
		key := keyCollection(db, coll)
		_, err := txn.Get(key)
		switch {
		case err == nil:
			return backend.ErrAlreadyExists
		case !errors.Is(err, badgerdb.ErrKeyNotFound):
			return err
		}
		return txn.Set(key, nil)
	})
	if errors.Is(err, badgerdb.ErrConflict) {
		err = backend.ErrAlreadyExists
	}
	if err != nil {
		return backend.NewStoreError("create collection", err, db, coll)
	}
	return nil
}

func (h *handle) Close() error {
	return nil
}

// translate maps BadgerDB lookup errors onto backend sentinels.
func translate(err error) error {
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return backend.ErrNotFound
	}
	return err
}
