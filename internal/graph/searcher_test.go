package graph

// Test Plan for Searcher:
// - Query callers returns direct callers at depth 1 and transitive callers at depth > 1
// - Query callees follows calls forward; cycles do not repeat nodes
// - Implementations and supertypes follow extends/implements edges
// - References returns incoming edges of every kind
// - Path returns the shortest call chain, start first
// - Targets resolve by id or by name; unknown targets return ErrNotFound
// - Include context injects code snippets with line numbers from cached file content
// - MaxResults truncates and reports it
// - Invalidate reloads the graph on the next query

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/symgraph/internal/model"
	"github.com/mvp-joe/symgraph/internal/storage"
)

func TestMain(m *testing.M) {
	storage.InitVectorExtension()
	os.Exit(m.Run())
}

const chainSource = `package svc

func main() {
	handle()
}

func handle() {
	process()
}

func process() {
	fetch()
}

func fetch() {
	process()
}
`

func fn(path, name string, kind model.SymbolKind, start, end int) *model.Symbol {
	return &model.Symbol{
		ID:        model.SymbolID(path, kind, nil, name, 0),
		Name:      name,
		Kind:      kind,
		Language:  "go",
		FilePath:  path,
		StartLine: start,
		EndLine:   end,
		StartByte: start * 10,
		EndByte:   end * 10,
	}
}

func edge(from, to *model.Symbol, kind model.RelationshipKind, line int) *model.Relationship {
	return &model.Relationship{
		ID:           model.RelationshipID(from.ID, to.ID, kind, from.FilePath, line),
		FromSymbolID: from.ID,
		ToSymbolID:   to.ID,
		Kind:         kind,
		FilePath:     from.FilePath,
		LineNumber:   line,
		Confidence:   model.ConfidenceLocal,
	}
}

type fixture struct {
	store                         *storage.Store
	main, handle, process, fetch  *model.Symbol
	shape, circle, square         *model.Symbol
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	s := storage.NewTestStore(t)

	f := fixture{
		store:   s,
		main:    fn("svc/chain.go", "main", model.KindFunction, 3, 5),
		handle:  fn("svc/chain.go", "handle", model.KindFunction, 7, 9),
		process: fn("svc/chain.go", "process", model.KindFunction, 11, 13),
		fetch:   fn("svc/chain.go", "fetch", model.KindFunction, 15, 17),
		shape:   fn("geo/shape.go", "Shape", model.KindInterface, 1, 3),
		circle:  fn("geo/shape.go", "Circle", model.KindStruct, 5, 7),
		square:  fn("geo/shape.go", "Square", model.KindStruct, 9, 11),
	}

	_, err := s.CommitFile(ctx, &storage.FileUpdate{
		File:    &model.File{Path: "svc/chain.go", Language: "go", Hash: "h1", Content: chainSource},
		Symbols: []*model.Symbol{f.main, f.handle, f.process, f.fetch},
		Relationships: []*model.Relationship{
			edge(f.main, f.handle, model.RelCalls, 4),
			edge(f.handle, f.process, model.RelCalls, 8),
			edge(f.process, f.fetch, model.RelCalls, 12),
			edge(f.fetch, f.process, model.RelCalls, 16),
		},
	})
	require.NoError(t, err)

	_, err = s.CommitFile(ctx, &storage.FileUpdate{
		File:    &model.File{Path: "geo/shape.go", Language: "go", Hash: "h2"},
		Symbols: []*model.Symbol{f.shape, f.circle, f.square},
		Relationships: []*model.Relationship{
			edge(f.circle, f.shape, model.RelImplements, 5),
			edge(f.square, f.circle, model.RelExtends, 9),
		},
	})
	require.NoError(t, err)
	return f
}

func newSearcher(t *testing.T, f fixture) *Searcher {
	t.Helper()
	s, err := NewSearcher(context.Background(), f.store, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func resultNames(resp *QueryResponse) []string {
	var out []string
	for _, r := range resp.Results {
		out = append(out, r.Node.Name)
	}
	return out
}

func TestSearcher_Callers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	s := newSearcher(t, f)

	resp, err := s.Query(ctx, &QueryRequest{Operation: OperationCallers, Target: "handle"})
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, resultNames(resp))
	assert.Equal(t, 1, resp.Results[0].Depth)

	resp, err = s.Query(ctx, &QueryRequest{Operation: OperationCallers, Target: f.fetch.ID, Depth: 5})
	require.NoError(t, err)
	assert.Equal(t, []string{"process", "handle", "main"}, resultNames(resp))
	assert.Equal(t, []int{1, 2, 3}, []int{resp.Results[0].Depth, resp.Results[1].Depth, resp.Results[2].Depth})
	assert.Equal(t, "graph", resp.Metadata.Source)
	assert.Equal(t, 7, resp.Metadata.Nodes)
	assert.Equal(t, 6, resp.Metadata.Edges)
}

func TestSearcher_CalleesWithCycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSearcher(t, newFixture(t))

	resp, err := s.Query(ctx, &QueryRequest{Operation: OperationCallees, Target: "main", Depth: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"handle", "process", "fetch"}, resultNames(resp))

	resp, err = s.Query(ctx, &QueryRequest{Operation: OperationCallees, Target: "process", Depth: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"fetch"}, resultNames(resp), "the start node is not reported back")
}

func TestSearcher_TypeHierarchy(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSearcher(t, newFixture(t))

	resp, err := s.Query(ctx, &QueryRequest{Operation: OperationImplementations, Target: "Shape", Depth: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Circle", "Square"}, resultNames(resp))

	resp, err = s.Query(ctx, &QueryRequest{Operation: OperationSupertypes, Target: "Square", Depth: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Circle", "Shape"}, resultNames(resp))

	resp, err = s.Query(ctx, &QueryRequest{Operation: OperationReferences, Target: "Circle"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Square"}, resultNames(resp))
}

func TestSearcher_Path(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSearcher(t, newFixture(t))

	resp, err := s.Query(ctx, &QueryRequest{Operation: OperationPath, Target: "main", To: "fetch"})
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "handle", "process", "fetch"}, resultNames(resp))
	assert.Equal(t, 0, resp.Results[0].Depth)
	assert.Equal(t, 3, resp.Results[3].Depth)

	resp, err = s.Query(ctx, &QueryRequest{Operation: OperationPath, Target: "fetch", To: "main"})
	require.NoError(t, err)
	assert.Empty(t, resp.Results)
}

func TestSearcher_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSearcher(t, newFixture(t))

	_, err := s.Query(ctx, &QueryRequest{Operation: OperationCallers, Target: "nope"})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.Query(ctx, &QueryRequest{Operation: "sideways", Target: "main"})
	assert.ErrorContains(t, err, "unsupported operation")

	_, err = s.Query(ctx, &QueryRequest{Operation: OperationCallers})
	assert.Error(t, err)
}

func TestSearcher_ContextAndLimits(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newSearcher(t, newFixture(t))

	resp, err := s.Query(ctx, &QueryRequest{Operation: OperationCallees, Target: "main", IncludeContext: true, ContextLines: 1})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	snippet := resp.Results[0].Context
	assert.True(t, strings.HasPrefix(snippet, "// Lines 6-10\n"), snippet)
	assert.Contains(t, snippet, "func handle() {")

	resp, err = s.Query(ctx, &QueryRequest{Operation: OperationCallees, Target: "main", Depth: 3, MaxResults: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 2)
	assert.Equal(t, 3, resp.TotalFound)
	assert.True(t, resp.Truncated)
}

func TestSearcher_Invalidate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)
	s := newSearcher(t, f)

	_, err := f.store.DeleteFile(ctx, "svc/chain.go")
	require.NoError(t, err)

	resp, err := s.Query(ctx, &QueryRequest{Operation: OperationCallers, Target: "handle"})
	require.NoError(t, err)
	assert.Len(t, resp.Results, 1, "stale until invalidated")

	s.Invalidate()
	_, err = s.Query(ctx, &QueryRequest{Operation: OperationCallers, Target: "handle"})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
