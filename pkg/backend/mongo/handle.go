package mongo

import (
	"context"
	"errors"

	"github.com/marmos91/docftp/pkg/backend"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type handle struct {
	client          *mongo.Client
	maxDocumentSize int64
}

func (h *handle) ListDatabases(ctx context.Context) ([]string, error) {
	names, err := h.client.ListDatabaseNames(ctx, bson.D{},
		options.ListDatabases().SetAuthorizedDatabases(true))
	if err != nil {
		return nil, backend.NewStoreError("list databases", err)
	}
	return names, nil
}

func (h *handle) ListCollections(ctx context.Context, db string) ([]string, error) {
	names, err := h.client.Database(db).ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, backend.NewStoreError("list collections", err, db)
	}
	return names, nil
}

// ListDocuments computes sizes server-side: the BSON size of structured
// documents, the payload length of binary ones.
func (h *handle) ListDocuments(ctx context.Context, db, coll string) ([]backend.DocumentInfo, error) {
	cursor, err := h.client.Database(db).Collection(coll).Aggregate(ctx, sizePipeline)
	if err != nil {
		return nil, backend.NewStoreError("list documents", err, db, coll)
	}
	defer cursor.Close(ctx)

	docs := []backend.DocumentInfo{}
	for cursor.Next(ctx) {
		var row struct {
			ID   any   `bson:"_id"`
			Size int64 `bson:"size"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, backend.NewStoreError("list documents", err, db, coll)
		}
		docs = append(docs, backend.DocumentInfo{ID: formatID(row.ID), Size: row.Size})
	}
	if err := cursor.Err(); err != nil {
		return nil, backend.NewStoreError("list documents", err, db, coll)
	}
	return docs, nil
}

func (h *handle) FetchContent(ctx context.Context, db, coll, id string) ([]byte, error) {
	collection := h.client.Database(db).Collection(coll)

	var raw bson.Raw
	var err error
	for _, candidate := range idCandidates(id) {
		raw, err = collection.FindOne(ctx, bson.D{{Key: "_id", Value: candidate}}).Raw()
		if !errors.Is(err, mongo.ErrNoDocuments) {
			break
		}
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, backend.NewStoreError("fetch", backend.ErrNotFound, db, coll, id)
	}
	if err != nil {
		return nil, backend.NewStoreError("fetch", err, db, coll, id)
	}

	data, err := renderDocument(raw)
	if err != nil {
		return nil, backend.NewStoreError("fetch", err, db, coll, id)
	}
	return data, nil
}

func (h *handle) StoreContent(ctx context.Context, db, coll, id string, data []byte) error {
	for _, name := range []string{db, coll, id} {
		if err := backend.ValidateName(name); err != nil {
			return backend.NewStoreError("store", err, db, coll, id)
		}
	}
	if h.maxDocumentSize > 0 && int64(len(data)) > h.maxDocumentSize {
		return backend.NewStoreError("store", errDocumentTooLarge, db, coll, id)
	}

	collection := h.client.Database(db).Collection(coll)

	existing, found, err := existingID(ctx, collection, id)
	if err != nil {
		return backend.NewStoreError("store", err, db, coll, id)
	}

	filterID, doc, err := prepareUpsert(id, existing, found, data)
	if err != nil {
		return backend.NewStoreError("store", err, db, coll, id)
	}

	_, err = collection.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: filterID}}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return backend.NewStoreError("store", err, db, coll, id)
	}
	return nil
}

// existingID returns the _id of the document listed as name, trying the same
// candidates as FetchContent.
func existingID(ctx context.Context, collection *mongo.Collection, name string) (any, bool, error) {
	projection := options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}})
	for _, candidate := range idCandidates(name) {
		var row struct {
			ID any `bson:"_id"`
		}
		err := collection.FindOne(ctx, bson.D{{Key: "_id", Value: candidate}}, projection).Decode(&row)
		if errors.Is(err, mongo.ErrNoDocuments) {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		return row.ID, true, nil
	}
	return nil, false, nil
}

func (h *handle) CreateCollection(ctx context.Context, db, coll string) error {
	for _, name := range []string{db, coll} {
		if err := backend.ValidateName(name); err != nil {
			return backend.NewStoreError("create collection", err, db, coll)
		}
	}

	err := h.client.Database(db).CreateCollection(ctx, coll)
	if isNamespaceExists(err) {
		return backend.NewStoreError("create collection", backend.ErrAlreadyExists, db, coll)
	}
	if err != nil {
		return backend.NewStoreError("create collection", err, db, coll)
	}
	return nil
}

func (h *handle) Close() error {
	return h.client.Disconnect(context.Background())
}
