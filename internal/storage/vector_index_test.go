package storage

// Test Plan for the sqlite-vec index:
// - InitVectorExtension makes vec functions available on new connections
// - Search orders by cosine distance and respects k
// - Dimension mismatches are rejected on write and query
// - Upsert replaces, Delete removes
// - Rebuild replaces the contents with the given entries

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitVectorExtension(t *testing.T) {
	t.Parallel()
	InitVectorExtension()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "vec.db"))
	require.NoError(t, err)
	defer db.Close()

	var version string
	require.NoError(t, db.QueryRow("SELECT vec_version()").Scan(&version))
	assert.NotEmpty(t, version)
}

func newVecIndex(t *testing.T) (*sql.DB, *sqliteVecIndex) {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "vec.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	idx, err := newSQLiteVecIndex(db, TestDimensions)
	require.NoError(t, err)
	return db, idx
}

func writeVectors(t *testing.T, db *sql.DB, idx *sqliteVecIndex, fn func(b VectorBatch)) {
	t.Helper()
	tx, err := db.Begin()
	require.NoError(t, err)
	b := idx.Begin(tx)
	fn(b)
	require.NoError(t, tx.Commit())
	require.NoError(t, b.Commit(context.Background()))
}

func TestVectorIndex_Search(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, idx := newVecIndex(t)

	writeVectors(t, db, idx, func(b VectorBatch) {
		for i, id := range []string{"x", "y", "z"} {
			require.NoError(t, b.Upsert(id, testVector(i)))
		}
	})

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	query := testVector(1)
	query[0] = 0.5
	hits, err := idx.Search(ctx, query, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "y", hits[0].SymbolID)
	assert.Equal(t, "x", hits[1].SymbolID)
	assert.Less(t, hits[0].Distance, hits[1].Distance)

	hits, err = idx.Search(ctx, query, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = idx.Search(ctx, []float32{1, 2, 3}, 2)
	assert.Error(t, err)
}

func TestVectorIndex_UpsertDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, idx := newVecIndex(t)

	writeVectors(t, db, idx, func(b VectorBatch) {
		require.NoError(t, b.Upsert("x", testVector(0)))
		require.NoError(t, b.Upsert("x", testVector(3)))
		require.NoError(t, b.Upsert("y", testVector(1)))
		assert.Error(t, b.Upsert("bad", []float32{1}))
	})

	hits, err := idx.Search(ctx, testVector(3), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "x", hits[0].SymbolID)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-5)

	writeVectors(t, db, idx, func(b VectorBatch) {
		require.NoError(t, b.Delete("x", "missing"))
		require.NoError(t, b.Delete())
	})
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestVectorIndex_Rebuild(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db, idx := newVecIndex(t)

	writeVectors(t, db, idx, func(b VectorBatch) {
		require.NoError(t, b.Upsert("stale", testVector(5)))
	})
	require.NoError(t, idx.Rebuild(ctx, []VectorEntry{
		{SymbolID: "a", Vector: testVector(0)},
		{SymbolID: "b", Vector: testVector(1)},
	}))

	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := idx.Search(ctx, testVector(5), 3)
	require.NoError(t, err)
	for _, h := range hits {
		assert.NotEqual(t, "stale", h.SymbolID)
	}
}
