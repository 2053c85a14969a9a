package storage

// Test Plan for VerifyIntegrity:
// - A consistent store reports nothing rebuilt
// - Missing FTS rows are detected and rebuilt from symbols
// - Missing vector entries are rebuilt from the embeddings table
// - Reopening a tampered database heals it before Open returns
// - Observers out of step with the symbols table are rebuilt
// - Observer rebuild failure is returned as an error
// - Committed changes reach observers
// - The chromem backend passes the same checks

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/symgraph/internal/model"
)

type fakeObserver struct {
	mu         sync.Mutex
	ids        map[string]bool
	rebuilds   int
	rebuildErr error
}

func newFakeObserver() *fakeObserver { return &fakeObserver{ids: make(map[string]bool)} }

func (f *fakeObserver) Name() string { return "fake" }

func (f *fakeObserver) Index(ctx context.Context, symbols []*model.Symbol) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range symbols {
		f.ids[s.ID] = true
	}
	return nil
}

func (f *fakeObserver) Remove(ctx context.Context, ids []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		delete(f.ids, id)
	}
	return nil
}

func (f *fakeObserver) Count(ctx context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ids), nil
}

func (f *fakeObserver) Rebuild(ctx context.Context, symbols []*model.Symbol) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuilds++
	if f.rebuildErr != nil {
		return f.rebuildErr
	}
	f.ids = make(map[string]bool)
	for _, s := range symbols {
		f.ids[s.ID] = true
	}
	return nil
}

func TestVerifyIntegrity_Consistent(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)
	threeSymbolFile(t, s)

	report, err := s.VerifyIntegrity(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Consistent())
	assert.Equal(t, 3, report.Symbols)
	assert.Equal(t, 3, report.FTSRows)
	assert.Equal(t, 3, report.Embeddings)
	assert.Equal(t, 3, report.Vectors)
	assert.Equal(t, 0, report.Unembedded)
}

func TestVerifyIntegrity_RebuildsFTS(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewTestStore(t)
	threeSymbolFile(t, s)

	_, err := s.DB().Exec("DELETE FROM symbols_fts WHERE symbol_id IN (SELECT id FROM symbols WHERE name = 'Beta')")
	require.NoError(t, err)

	report, err := s.VerifyIntegrity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.FTSRows)
	assert.Contains(t, report.Rebuilt, "fts")
	assert.Equal(t, 3, count(t, s, "SELECT COUNT(*) FROM symbols_fts"))

	hits, err := s.SearchText(ctx, "Beta", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestVerifyIntegrity_RebuildsVectors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewTestStore(t)
	syms := threeSymbolFile(t, s)

	_, err := s.DB().Exec("DELETE FROM symbols_vec")
	require.NoError(t, err)

	report, err := s.VerifyIntegrity(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"vector"}, report.Rebuilt)

	hits, err := s.SemanticSearch(ctx, testVector(2), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, syms[2].ID, hits[0].Symbol.ID)
}

func TestOpen_HealsTamperedDatabase(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")
	opts := Options{WorkspaceRoot: "/w", Dimensions: TestDimensions}

	s, err := Open(ctx, path, opts)
	require.NoError(t, err)
	threeSymbolFile(t, s)
	_, err = s.DB().Exec("DELETE FROM symbols_fts")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, opts)
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 3, count(t, s, "SELECT COUNT(*) FROM symbols_fts"))
}

func TestVerifyIntegrity_Observers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	obs := newFakeObserver()
	s := NewTestStore(t, obs)

	syms := threeSymbolFile(t, s)
	n, _ := obs.Count(ctx)
	assert.Equal(t, 3, n, "commits reach observers")

	_, err := s.DeleteFile(ctx, "pkg/a.go")
	require.NoError(t, err)
	n, _ = obs.Count(ctx)
	assert.Equal(t, 0, n, "deletes reach observers")

	threeSymbolFile(t, s)
	require.NoError(t, obs.Remove(ctx, []string{syms[0].ID}))

	report, err := s.VerifyIntegrity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Observers["fake"])
	assert.Equal(t, []string{"fake"}, report.Rebuilt)
	n, _ = obs.Count(ctx)
	assert.Equal(t, 3, n)
}

func TestVerifyIntegrity_FailedRebuildIsFatal(t *testing.T) {
	t.Parallel()
	obs := newFakeObserver()
	obs.rebuildErr = errors.New("disk full")
	s := NewTestStore(t)
	threeSymbolFile(t, s)
	s.AddObserver(obs)

	_, err := s.VerifyIntegrity(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestChromemBackend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	vecDir := filepath.Join(t.TempDir(), "vectors")
	s := NewTestStoreWithOptions(t, Options{VectorBackend: VectorBackendChromem, VectorPath: vecDir})

	syms := threeSymbolFile(t, s)

	hits, err := s.SemanticSearch(ctx, testVector(0), 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	assert.Equal(t, syms[0].ID, hits[0].Symbol.ID)

	_, err = s.DeleteFile(ctx, "pkg/a.go")
	require.NoError(t, err)
	hits, err = s.SemanticSearch(ctx, testVector(0), 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	threeSymbolFile(t, s)
	require.NoError(t, s.vectors.Rebuild(ctx, nil))
	report, err := s.VerifyIntegrity(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"vector"}, report.Rebuilt)
	n, err := s.vectors.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
