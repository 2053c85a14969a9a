package storage

// Test Plan for resolution support:
// - NameIndex returns definitions and leaves out import bindings
// - Pending scopes by callee name or file and de-duplicates rows matching both
// - ImportsByFile returns the caller language and import sources
// - Apply promotes, is idempotent, retargets and clears resolutions
// - Deleting the target symbol nulls resolved_to and removes the edge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/symgraph/internal/model"
)

type resolutionFixture struct {
	main, helperA, helperB *model.Symbol
	pending                *model.PendingRelationship
}

func newResolutionFixture(t *testing.T, s *Store) resolutionFixture {
	t.Helper()
	ctx := context.Background()

	helperA := testSymbol("utils/a.go", "helper", model.KindFunction, 1)
	helperB := testSymbol("utils/b.go", "helper", model.KindFunction, 1)
	main := testSymbol("cmd/main.go", "main", model.KindFunction, 3)
	imp := testSymbol("cmd/main.go", "utils", model.KindImport, 1)
	imp.Metadata = map[string]string{"source": "example.com/utils"}
	pending := testPending(main, "helper", 4)

	for _, u := range []*FileUpdate{
		{File: testFile("utils/a.go"), Symbols: []*model.Symbol{helperA}},
		{File: testFile("utils/b.go"), Symbols: []*model.Symbol{helperB}},
		{File: testFile("cmd/main.go"), Symbols: []*model.Symbol{imp, main}, Pending: []*model.PendingRelationship{pending}},
	} {
		_, err := s.CommitFile(ctx, u)
		require.NoError(t, err)
	}
	return resolutionFixture{main: main, helperA: helperA, helperB: helperB, pending: pending}
}

func TestNameIndex(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewTestStore(t)
	newResolutionFixture(t, s)

	idx, err := s.NameIndex(ctx, []string{"helper", "utils"})
	require.NoError(t, err)
	require.Len(t, idx["helper"], 2)
	assert.Equal(t, "utils/a.go", idx["helper"][0].FilePath)
	assert.Empty(t, idx["utils"], "import bindings are not candidates")

	all, err := s.NameIndex(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2) // helper, main
}

func TestPendingScopes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewTestStore(t)
	fx := newResolutionFixture(t, s)

	none, err := s.PendingRelationships(ctx, PendingQuery{})
	require.NoError(t, err)
	assert.Empty(t, none)

	both, err := s.PendingRelationships(ctx, PendingQuery{CalleeNames: []string{"helper"}, FilePaths: []string{"cmd/main.go"}})
	require.NoError(t, err)
	require.Len(t, both, 1)
	assert.Equal(t, fx.pending.ID, both[0].ID)
	assert.Empty(t, both[0].ResolvedTo)

	other, err := s.PendingRelationships(ctx, PendingQuery{CalleeNames: []string{"nothing"}})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestImportsByFile(t *testing.T) {
	t.Parallel()
	s := NewTestStore(t)
	newResolutionFixture(t, s)

	files, err := s.ImportsByFile(context.Background(), []string{"cmd/main.go", "utils/a.go"})
	require.NoError(t, err)
	require.Contains(t, files, "cmd/main.go")
	assert.Equal(t, "go", files["cmd/main.go"].Language)
	assert.Equal(t, []ImportRef{{Name: "utils", Source: "example.com/utils"}}, files["cmd/main.go"].Imports)
	assert.Empty(t, files["utils/a.go"].Imports)
}

func TestApplyResolutions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewTestStore(t)
	fx := newResolutionFixture(t, s)

	apply := func(target string) {
		t.Helper()
		require.NoError(t, s.RunResolution(ctx, func(rt *ResolutionTx) error {
			recs, err := rt.Pending(ctx, PendingQuery{All: true})
			if err != nil {
				return err
			}
			var res []Resolution
			for _, r := range recs {
				res = append(res, Resolution{Pending: r, Target: target})
			}
			return rt.Apply(ctx, res)
		}))
	}
	edges := func() []*model.Relationship {
		t.Helper()
		rels, err := s.ListRelationships(ctx, RelationshipQuery{SymbolID: fx.main.ID, Direction: model.DirectionOutgoing})
		require.NoError(t, err)
		return rels
	}

	apply(fx.helperA.ID)
	first := edges()
	require.Len(t, first, 1)
	assert.Equal(t, fx.helperA.ID, first[0].ToSymbolID)
	assert.Equal(t, model.ConfidenceImported, first[0].Confidence)

	apply(fx.helperA.ID)
	assert.Equal(t, first, edges(), "applying twice is idempotent")

	apply(fx.helperB.ID)
	moved := edges()
	require.Len(t, moved, 1)
	assert.Equal(t, fx.helperB.ID, moved[0].ToSymbolID)

	apply("")
	assert.Empty(t, edges())
	recs, err := s.PendingRelationships(ctx, PendingQuery{All: true})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Empty(t, recs[0].ResolvedTo)
}

func TestDeletingTargetClearsResolution(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewTestStore(t)
	fx := newResolutionFixture(t, s)

	require.NoError(t, s.RunResolution(ctx, func(rt *ResolutionTx) error {
		recs, err := rt.Pending(ctx, PendingQuery{All: true})
		if err != nil {
			return err
		}
		return rt.Apply(ctx, []Resolution{{Pending: recs[0], Target: fx.helperA.ID}})
	}))

	_, err := s.DeleteFile(ctx, "utils/a.go")
	require.NoError(t, err)

	assert.Equal(t, 0, count(t, s, "SELECT COUNT(*) FROM relationships"))
	recs, err := s.PendingRelationships(ctx, PendingQuery{All: true, OnlyUnresolved: true})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
