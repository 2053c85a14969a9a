package resolver

// Test Plan for Resolve:
// - helper defined in utils.py and called from main.py resolves to exactly one calls edge
// - A second run changes nothing (idempotence)
// - A scoped run leaves an unmatched pending row dormant; adding the name resolves it
// - Deleting the target file and re-resolving the removed names drops the edge
// - Same-file calls never reach Pass 2
// - An empty scope touches nothing

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/symgraph/internal/extraction"
	"github.com/mvp-joe/symgraph/internal/model"
	"github.com/mvp-joe/symgraph/internal/storage"
)

func TestMain(m *testing.M) {
	storage.InitVectorExtension()
	os.Exit(m.Run())
}

const (
	utilsPy = "def helper(n):\n    return n * 2\n"
	mainPy  = "from utils import helper\n\n\ndef main():\n    return helper(21)\n"
)

func commitSource(t *testing.T, s *storage.Store, path, src string) *storage.CommitResult {
	t.Helper()
	ctx := context.Background()

	res, err := extraction.ParseFile(ctx, extraction.NewRegistry(), path, []byte(src))
	require.NoError(t, err)
	out, err := s.CommitFile(ctx, &storage.FileUpdate{
		File: &model.File{
			Path:     path,
			Language: res.Language,
			Hash:     model.ContentHash([]byte(src)),
			Size:     int64(len(src)),
		},
		Symbols:       res.Symbols,
		Relationships: res.Relationships,
		Pending:       res.Pending,
		Identifiers:   res.Identifiers,
	})
	require.NoError(t, err)
	return out
}

func callsFrom(t *testing.T, s *storage.Store, from *model.Symbol) []*model.Relationship {
	t.Helper()
	rels, err := s.ListRelationships(context.Background(), storage.RelationshipQuery{
		SymbolID:  from.ID,
		Direction: model.DirectionOutgoing,
		Kind:      model.RelCalls,
	})
	require.NoError(t, err)
	return rels
}

func symbolNamed(t *testing.T, s *storage.Store, name string, kind model.SymbolKind) *model.Symbol {
	t.Helper()
	syms, err := s.FindSymbolsByName(context.Background(), name)
	require.NoError(t, err)
	for _, sym := range syms {
		if sym.Kind == kind {
			return sym
		}
	}
	require.FailNow(t, "symbol not found", "%s (%s)", name, kind)
	return nil
}

func TestResolve_CrossFileHelper(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := storage.NewTestStore(t)
	commitSource(t, s, "main.py", mainPy)
	commitSource(t, s, "utils.py", utilsPy)

	main := symbolNamed(t, s, "main", model.KindFunction)
	helper := symbolNamed(t, s, "helper", model.KindFunction)
	assert.Empty(t, callsFrom(t, s, main), "Pass 1 alone leaves the call pending")

	r := New(s)
	stats, err := r.Resolve(ctx, Scope{All: true})
	require.NoError(t, err)
	assert.Equal(t, &Stats{Considered: 1, Resolved: 1, Changed: 1}, stats)

	edges := callsFrom(t, s, main)
	require.Len(t, edges, 1)
	assert.Equal(t, helper.ID, edges[0].ToSymbolID)
	assert.Equal(t, "main.py", edges[0].FilePath)
	assert.Equal(t, model.ConfidenceImported, edges[0].Confidence)

	again, err := r.Resolve(ctx, Scope{All: true})
	require.NoError(t, err)
	assert.Equal(t, 0, again.Changed)
	assert.Equal(t, edges, callsFrom(t, s, main))
}

func TestResolve_ScopedRunsAndDormantRows(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := storage.NewTestStore(t)
	r := New(s)

	commitSource(t, s, "main.py", mainPy)
	stats, err := r.Resolve(ctx, Scope{FilePaths: []string{"main.py"}})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Unresolved)

	pending, err := s.PendingRelationships(ctx, storage.PendingQuery{All: true, OnlyUnresolved: true})
	require.NoError(t, err)
	require.Len(t, pending, 1, "unmatched row stays dormant")

	added := commitSource(t, s, "utils.py", utilsPy)
	require.Contains(t, added.AddedNames, "helper")

	stats, err = r.Resolve(ctx, Scope{CalleeNames: added.AddedNames})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Resolved)

	main := symbolNamed(t, s, "main", model.KindFunction)
	require.Len(t, callsFrom(t, s, main), 1)

	removed, err := s.DeleteFile(ctx, "utils.py")
	require.NoError(t, err)
	assert.Empty(t, callsFrom(t, s, main), "edge cascades with its target")

	stats, err = r.Resolve(ctx, Scope{CalleeNames: removed.OldNames})
	require.NoError(t, err)
	assert.Equal(t, &Stats{Considered: 1, Unresolved: 1}, stats)
}

func TestResolve_SameFileCallNeverPending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := storage.NewTestStore(t)
	commitSource(t, s, "app.py", "def helper():\n    return 1\n\n\ndef caller():\n    return helper()\n")

	pending, err := s.PendingRelationships(ctx, storage.PendingQuery{All: true})
	require.NoError(t, err)
	assert.Empty(t, pending)

	stats, err := New(s).Resolve(ctx, Scope{All: true})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Considered)

	caller := symbolNamed(t, s, "caller", model.KindFunction)
	require.Len(t, callsFrom(t, s, caller), 1)
}

func TestResolve_EmptyScope(t *testing.T) {
	t.Parallel()
	s := storage.NewTestStore(t)
	commitSource(t, s, "main.py", mainPy)

	stats, err := New(s).Resolve(context.Background(), Scope{})
	require.NoError(t, err)
	assert.Equal(t, &Stats{}, stats)
}
