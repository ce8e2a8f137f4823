package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/docftp/pkg/backend"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunCollectionTests checks database and collection enumeration and creation.
func (suite *BackendTestSuite) RunCollectionTests(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateAndList", func(t *testing.T) {
		h := suite.login(t)
		db := suite.newDatabase()

		require.NoError(t, h.CreateCollection(ctx, db, "orders"))
		require.NoError(t, h.CreateCollection(ctx, db, "customers"))

		dbs, err := h.ListDatabases(ctx)
		require.NoError(t, err)
		assert.Contains(t, dbs, db)

		colls, err := h.ListCollections(ctx, db)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"orders", "customers"}, colls)
	})

	t.Run("CreateIsIdempotent", func(t *testing.T) {
		h := suite.login(t)
		db := suite.newDatabase()

		require.NoError(t, h.CreateCollection(ctx, db, "orders"))
		err := h.CreateCollection(ctx, db, "orders")
		if err != nil {
			assert.True(t, errors.Is(err, backend.ErrAlreadyExists),
				"second create may only fail with ErrAlreadyExists, got %v", err)
		}

		colls, err := h.ListCollections(ctx, db)
		require.NoError(t, err)
		assert.Equal(t, []string{"orders"}, colls)
	})

	t.Run("EmptyBackend", func(t *testing.T) {
		h := suite.login(t)
		db := suite.newDatabase()

		dbs, err := h.ListDatabases(ctx)
		require.NoError(t, err)
		assert.NotContains(t, dbs, db)
	})

	t.Run("NewCollectionIsEmpty", func(t *testing.T) {
		h := suite.login(t)
		db := suite.newDatabase()

		require.NoError(t, h.CreateCollection(ctx, db, "empty"))
		docs, err := h.ListDocuments(ctx, db, "empty")
		require.NoError(t, err)
		assert.Empty(t, docs)
	})
}
