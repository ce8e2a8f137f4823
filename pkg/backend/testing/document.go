package testing

import (
	"context"
	"testing"

	"github.com/marmos91/docftp/pkg/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDocumentTests checks store/fetch round trips and listings.
func (suite *BackendTestSuite) RunDocumentTests(t *testing.T) {
	ctx := context.Background()

	t.Run("StructuredRoundTrip", func(t *testing.T) {
		h := suite.login(t)
		db := suite.newDatabase()
		require.NoError(t, h.CreateCollection(ctx, db, "docs"))

		for name, payload := range map[string]string{
			"alice": `{"name":"Alice","age":30,"tags":["a","b"]}`,
			"bob":   `{"_id":"bob","name":"Bob"}`,
		} {
			require.NoError(t, h.StoreContent(ctx, db, "docs", name, []byte(payload)))

			got, err := h.FetchContent(ctx, db, "docs", name)
			require.NoError(t, err)
			assert.Equal(t, payload, string(got), "structured documents round-trip byte for byte")
		}
	})

	t.Run("BinaryRoundTrip", func(t *testing.T) {
		h := suite.login(t)
		db := suite.newDatabase()
		require.NoError(t, h.CreateCollection(ctx, db, "blobs"))

		payload := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff, '{', '\r', '\n'}
		require.NoError(t, h.StoreContent(ctx, db, "blobs", "image.png", payload))

		got, err := h.FetchContent(ctx, db, "blobs", "image.png")
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("Upsert", func(t *testing.T) {
		h := suite.login(t)
		db := suite.newDatabase()
		require.NoError(t, h.CreateCollection(ctx, db, "docs"))

		require.NoError(t, h.StoreContent(ctx, db, "docs", "note", []byte("first")))
		require.NoError(t, h.StoreContent(ctx, db, "docs", "note", []byte("second version")))

		got, err := h.FetchContent(ctx, db, "docs", "note")
		require.NoError(t, err)
		assert.Equal(t, "second version", string(got))

		docs, err := h.ListDocuments(ctx, db, "docs")
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "note", docs[0].ID)
		assert.Positive(t, docs[0].Size)
	})

	t.Run("ListReportsSizes", func(t *testing.T) {
		h := suite.login(t)
		db := suite.newDatabase()
		require.NoError(t, h.CreateCollection(ctx, db, "sized"))

		require.NoError(t, h.StoreContent(ctx, db, "sized", "a", []byte("12345")))
		require.NoError(t, h.StoreContent(ctx, db, "sized", "b", []byte("1234567890")))

		docs, err := h.ListDocuments(ctx, db, "sized")
		require.NoError(t, err)

		sizes := make(map[string]int64, len(docs))
		for _, d := range docs {
			sizes[d.ID] = d.Size
		}
		assert.Equal(t, map[string]int64{"a": 5, "b": 10}, sizes)
	})

	t.Run("FetchMissing", func(t *testing.T) {
		h := suite.login(t)
		db := suite.newDatabase()
		require.NoError(t, h.CreateCollection(ctx, db, "docs"))

		_, err := h.FetchContent(ctx, db, "docs", "does-not-exist")
		assert.ErrorIs(t, err, backend.ErrNotFound)
	})
}
