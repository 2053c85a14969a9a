package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestDimensions is the embedding width used by test stores.
const TestDimensions = 8

// NewTestStore opens a store in t.TempDir() with the sqlite-vec backend and
// TestDimensions-wide vectors. Cleanup is registered with t.Cleanup.
func NewTestStore(t testing.TB, observers ...Observer) *Store {
	t.Helper()
	return NewTestStoreWithOptions(t, Options{Observers: observers})
}

// NewTestStoreWithOptions is NewTestStore with explicit options. Zero fields
// get test defaults.
func NewTestStoreWithOptions(t testing.TB, opts Options) *Store {
	t.Helper()

	dir := t.TempDir()
	if opts.WorkspaceRoot == "" {
		opts.WorkspaceRoot = dir
	}
	if opts.Dimensions == 0 {
		opts.Dimensions = TestDimensions
	}
	if opts.EmbeddingModel == "" {
		opts.EmbeddingModel = "test"
	}

	s, err := Open(context.Background(), filepath.Join(dir, "index.db"), opts)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}
