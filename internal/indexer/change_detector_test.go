package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/symgraph/internal/model"
	"github.com/mvp-joe/symgraph/internal/storage"
)

// TEST PLAN: ChangeDetector
//
// The ChangeDetector compares the workspace on disk with stored file records:
// - Added: on disk, not stored
// - Modified: stored hash differs from disk
// - Deleted: stored, gone from disk
// - Unchanged: same size and mtime (no hashing), or same hash after mtime drift
//
// Test Cases:
// 1. Mixed add/modify/delete/unchanged over full discovery
// 2. Mtime drift with identical content stays Unchanged
// 3. A hint checks only the hinted paths; a hinted path gone from disk is Deleted
// 4. Absolute and relative hints normalize to the same stored path
// 5. Context cancellation stops detection

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// recordFile stores a file record matching what is on disk.
func recordFile(t *testing.T, s *storage.Store, root, rel string) {
	t.Helper()
	abs := filepath.Join(root, rel)
	data, err := os.ReadFile(abs)
	require.NoError(t, err)
	info, err := os.Stat(abs)
	require.NoError(t, err)
	require.NoError(t, s.StoreFileInfo(context.Background(), &model.File{
		Path:         rel,
		Language:     "go",
		Hash:         model.ContentHash(data),
		Size:         info.Size(),
		LastModified: info.ModTime().UnixNano(),
	}))
}

func newDetector(t *testing.T, root string, s *storage.Store) *ChangeDetector {
	t.Helper()
	d, err := NewDiscovery(root, []string{"**/*.go"}, nil, false)
	require.NoError(t, err)
	return NewChangeDetector(root, s, d)
}

func TestChangeDetector_Mixed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	s := storage.NewTestStore(t)

	writeFile(t, filepath.Join(root, "same.go"), "package a\n")
	writeFile(t, filepath.Join(root, "edit.go"), "package a\n")
	writeFile(t, filepath.Join(root, "gone.go"), "package a\n")
	recordFile(t, s, root, "same.go")
	recordFile(t, s, root, "edit.go")
	recordFile(t, s, root, "gone.go")

	writeFile(t, filepath.Join(root, "edit.go"), "package a\n\nfunc F() {}\n")
	require.NoError(t, os.Remove(filepath.Join(root, "gone.go")))
	writeFile(t, filepath.Join(root, "sub", "new.go"), "package sub\n")

	changes, err := newDetector(t, root, s).DetectChanges(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"sub/new.go"}, changes.Added)
	assert.Equal(t, []string{"edit.go"}, changes.Modified)
	assert.Equal(t, []string{"gone.go"}, changes.Deleted)
	assert.Equal(t, []string{"same.go"}, changes.Unchanged)
	assert.Equal(t, []string{"edit.go", "sub/new.go"}, changes.Changed())
}

func TestChangeDetector_MtimeDrift(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	s := storage.NewTestStore(t)

	path := filepath.Join(root, "a.go")
	writeFile(t, path, "package a\n")
	recordFile(t, s, root, "a.go")

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	changes, err := newDetector(t, root, s).DetectChanges(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go"}, changes.Unchanged)
	assert.Empty(t, changes.Modified)
}

func TestChangeDetector_Hint(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	root := t.TempDir()
	s := storage.NewTestStore(t)

	writeFile(t, filepath.Join(root, "a.go"), "package a\n")
	writeFile(t, filepath.Join(root, "b.go"), "package a\n")
	writeFile(t, filepath.Join(root, "c.go"), "package a\n")
	recordFile(t, s, root, "b.go")
	recordFile(t, s, root, "c.go")
	require.NoError(t, os.Remove(filepath.Join(root, "b.go")))

	changes, err := newDetector(t, root, s).DetectChanges(ctx, []string{
		filepath.Join(root, "a.go"),
		"a.go",
		"b.go",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.go"}, changes.Added)
	assert.Equal(t, []string{"b.go"}, changes.Deleted)
	assert.Empty(t, changes.Unchanged, "c.go was not hinted")
}

func TestChangeDetector_Cancelled(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	s := storage.NewTestStore(t)
	writeFile(t, filepath.Join(root, "a.go"), "package a\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newDetector(t, root, s).DetectChanges(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
