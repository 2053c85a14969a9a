package mcp

// Test Plan for MCP tools:
// - Every tool registers on a server built from real dependencies
// - search_symbols finds symbols in text, keyword and semantic modes, applies filters, and rejects bad modes and kinds
// - Arguments sent as strings are coerced to their field types
// - get_symbol looks up by id and by name; unknown ids are tool errors
// - symbol_at returns the enclosing function
// - get_symbols nests methods under their class, cuts off at max_depth and filters by target
// - find_references reports both directions with the symbol at the other end
// - query_graph answers callers and callees; unknown targets and operations are tool errors
// - trace_call_path returns the call chain in order
// - index_status reports table counts and the last indexing time

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/symgraph/internal/embed"
	"github.com/mvp-joe/symgraph/internal/graph"
	"github.com/mvp-joe/symgraph/internal/indexer"
	"github.com/mvp-joe/symgraph/internal/model"
	"github.com/mvp-joe/symgraph/internal/search"
	"github.com/mvp-joe/symgraph/internal/storage"
)

func TestMain(m *testing.M) {
	storage.InitVectorExtension()
	os.Exit(m.Run())
}

const (
	utilsPy = "def helper(n):\n    \"\"\"Double n.\"\"\"\n    return n * 2\n"
	mainPy  = "from utils import helper\n\n\ndef run(n):\n    return helper(n)\n\n\ndef main():\n    return run(21)\n"
)

type fixture struct {
	deps  Deps
	store *storage.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, map[string]string{"utils.py": utilsPy, "main.py": mainPy})
}

// newFixtureWith indexes a workspace holding files.
func newFixtureWith(t *testing.T, files map[string]string) *fixture {
	t.Helper()
	ctx := context.Background()
	root := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}

	engine, err := search.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	provider, err := embed.NewProvider(embed.Config{Provider: embed.ProviderHash, Dimensions: storage.TestDimensions})
	require.NoError(t, err)

	store := storage.NewTestStoreWithOptions(t, storage.Options{
		WorkspaceRoot:  root,
		EmbeddingModel: provider.Model(),
		Observers:      []storage.Observer{engine},
	})

	p, err := indexer.NewPipeline(indexer.DefaultConfig(root), store, indexer.WithEmbedder(provider))
	require.NoError(t, err)
	_, err = p.IndexAll(ctx)
	require.NoError(t, err)

	g, err := graph.NewSearcher(ctx, store, root)
	require.NoError(t, err)

	return &fixture{
		deps:  Deps{Store: store, Search: engine, Graph: g, Embedder: provider},
		store: store,
	}
}

func (f *fixture) symbol(t *testing.T, name string) *model.Symbol {
	t.Helper()
	syms, err := f.store.FindSymbols(context.Background(), storage.SymbolQuery{Name: name, Kind: model.KindFunction})
	require.NoError(t, err)
	require.Len(t, syms, 1)
	return syms[0]
}

func call(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) *mcp.CallToolResult {
	t.Helper()
	result, err := handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	})
	require.NoError(t, err, "should not return system error")
	require.NotNil(t, result)
	return result
}

func decode[T any](t *testing.T, result *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, result.IsError, "should not be error result: %v", result.Content)
	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok, "should be text content")
	var out T
	require.NoError(t, json.Unmarshal([]byte(textContent.Text), &out))
	return out
}

func errorText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.True(t, result.IsError, "should be error result")
	textContent, ok := mcp.AsTextContent(result.Content[0])
	require.True(t, ok)
	return textContent.Text
}

func names(results []SymbolResult) []string {
	var out []string
	for _, r := range results {
		out = append(out, r.Name)
	}
	return out
}

func TestNewServer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	s, err := NewServer(f.deps, "test")
	require.NoError(t, err)
	tools := s.MCP().ListTools()
	for _, name := range []string{"search_symbols", "get_symbol", "symbol_at", "get_symbols", "find_references", "query_graph", "trace_call_path", "index_status"} {
		assert.Contains(t, tools, name)
	}

	_, err = NewServer(Deps{Store: f.store}, "test")
	assert.Error(t, err)
}

func TestSearchTool(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	handler := createSearchHandler(f.deps.Store, f.deps.Search, f.deps.Embedder)

	t.Run("text", func(t *testing.T) {
		resp := decode[SearchResponse](t, call(t, handler, map[string]any{"query": "helper", "kind": "function"}))
		require.NotEmpty(t, resp.Results)
		assert.Equal(t, "helper", resp.Results[0].Name)
		assert.Equal(t, "utils.py", resp.Results[0].FilePath)
		assert.Equal(t, ModeText, resp.Mode)
	})

	t.Run("keyword with string limit", func(t *testing.T) {
		resp := decode[SearchResponse](t, call(t, handler, map[string]any{
			"query": "run",
			"mode":  ModeKeyword,
			"kind":  "function",
			"limit": "5",
		}))
		assert.Equal(t, []string{"run"}, names(resp.Results))
	})

	t.Run("keyword file filter", func(t *testing.T) {
		resp := decode[SearchResponse](t, call(t, handler, map[string]any{
			"query":     "helper",
			"mode":      ModeKeyword,
			"file_path": "main*",
		}))
		for _, r := range resp.Results {
			assert.Equal(t, "main.py", r.FilePath)
		}
	})

	t.Run("semantic", func(t *testing.T) {
		resp := decode[SearchResponse](t, call(t, handler, map[string]any{
			"query": "double n",
			"mode":  ModeSemantic,
			"limit": 5,
		}))
		assert.Contains(t, names(resp.Results), "helper")
	})

	t.Run("semantic without embedder", func(t *testing.T) {
		h := createSearchHandler(f.deps.Store, f.deps.Search, nil)
		msg := errorText(t, call(t, h, map[string]any{"query": "x", "mode": ModeSemantic}))
		assert.Contains(t, msg, "semantic search is not available")
	})

	t.Run("invalid input", func(t *testing.T) {
		assert.Contains(t, errorText(t, call(t, handler, map[string]any{})), "query parameter is required")
		assert.Contains(t, errorText(t, call(t, handler, map[string]any{"query": "x", "mode": "fuzzy"})), "invalid mode")
		assert.Contains(t, errorText(t, call(t, handler, map[string]any{"query": "x", "kind": "widget"})), "unknown symbol kind")
	})
}

func TestSymbolTools(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	helper := f.symbol(t, "helper")

	handler := createSymbolHandler(f.deps.Store)
	resp := decode[SymbolsResponse](t, call(t, handler, map[string]any{"id": helper.ID}))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "helper", resp.Symbols[0].Name)

	resp = decode[SymbolsResponse](t, call(t, handler, map[string]any{"name": "run", "kind": "function"}))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "main.py", resp.Symbols[0].FilePath)

	assert.Contains(t, errorText(t, call(t, handler, map[string]any{"id": "missing"})), "not found")
	assert.Contains(t, errorText(t, call(t, handler, map[string]any{})), "id or name")

	at := createSymbolAtHandler(f.deps.Store)
	sym := decode[SymbolResult](t, call(t, at, map[string]any{"file_path": "main.py", "line": 5}))
	assert.Equal(t, "run", sym.Name)
	assert.Contains(t, errorText(t, call(t, at, map[string]any{"file_path": "main.py", "line": 2})), "no symbol encloses")
}

const shapesPy = `import math


class Shape:
    """Base shape."""
    sides = 0

    def area(self):
        def square(x):
            return x * x
        return square(2)

    def _scale(self, k):
        pass


def make():
    return Shape()
`

func TestOutlineTool(t *testing.T) {
	t.Parallel()
	f := newFixtureWith(t, map[string]string{"shapes.py": shapesPy})
	handler := createOutlineHandler(f.deps.Store)

	t.Run("default depth", func(t *testing.T) {
		resp := decode[OutlineResponse](t, call(t, handler, map[string]any{"file_path": "shapes.py"}))
		assert.Equal(t, "shapes.py", resp.FilePath)
		assert.Equal(t, 6, resp.Total, "import binding is not part of the outline")
		assert.Equal(t, 2, resp.TopLevel)
		assert.Equal(t, 2, resp.ByKind[model.KindMethod])
		require.Len(t, resp.Symbols, 2)

		shape := resp.Symbols[0]
		assert.Equal(t, "Shape", shape.Name)
		assert.Equal(t, model.KindClass, shape.Kind)
		assert.Equal(t, 0, shape.Hidden)

		var members []string
		for _, c := range shape.Children {
			members = append(members, c.Name)
			assert.Equal(t, shape.ID, c.ParentID)
		}
		assert.Equal(t, []string{"sides", "area", "_scale"}, members)

		area := shape.Children[1]
		assert.Empty(t, area.Children)
		assert.Equal(t, 1, area.Hidden, "nested square is beyond max_depth")
		assert.Equal(t, model.VisibilityPrivate, shape.Children[2].Visibility)

		assert.Equal(t, "make", resp.Symbols[1].Name)
		assert.Empty(t, resp.Symbols[1].Children)
	})

	t.Run("depth", func(t *testing.T) {
		resp := decode[OutlineResponse](t, call(t, handler, map[string]any{"file_path": "shapes.py", "max_depth": 0}))
		require.Len(t, resp.Symbols, 2)
		assert.Empty(t, resp.Symbols[0].Children)
		assert.Equal(t, 3, resp.Symbols[0].Hidden)

		resp = decode[OutlineResponse](t, call(t, handler, map[string]any{"file_path": "./shapes.py", "max_depth": "2"}))
		area := resp.Symbols[0].Children[1]
		require.Len(t, area.Children, 1)
		assert.Equal(t, "square", area.Children[0].Name)
		assert.Equal(t, 0, area.Hidden)
	})

	t.Run("target", func(t *testing.T) {
		resp := decode[OutlineResponse](t, call(t, handler, map[string]any{"file_path": "shapes.py", "target": "SQUARE"}))
		require.Len(t, resp.Symbols, 1)
		assert.Equal(t, "Shape", resp.Symbols[0].Name)

		assert.Contains(t, errorText(t, call(t, handler, map[string]any{"file_path": "shapes.py", "target": "circle"})), "no symbols matching")
	})

	t.Run("invalid input", func(t *testing.T) {
		assert.Contains(t, errorText(t, call(t, handler, map[string]any{})), "file_path parameter is required")
		assert.Contains(t, errorText(t, call(t, handler, map[string]any{"file_path": "missing.py"})), "no symbols found")
		assert.Contains(t, errorText(t, call(t, handler, map[string]any{"file_path": "shapes.py", "max_depth": -1})), "max_depth")
		assert.Contains(t, errorText(t, call(t, handler, map[string]any{"file_path": "../shapes.py"})), "invalid file_path")
	})
}

func TestReferencesTool(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	handler := createReferencesHandler(f.deps.Store)

	resp := decode[ReferencesResponse](t, call(t, handler, map[string]any{"target": "run"}))
	require.Len(t, resp.Targets, 1)
	require.Equal(t, 2, resp.Total)

	byDirection := map[model.Direction]string{}
	for _, ref := range resp.References {
		require.NotNil(t, ref.Symbol)
		assert.Equal(t, model.RelCalls, ref.Kind)
		byDirection[ref.Direction] = ref.Symbol.Name
	}
	assert.Equal(t, "main", byDirection[model.DirectionIncoming])
	assert.Equal(t, "helper", byDirection[model.DirectionOutgoing])

	resp = decode[ReferencesResponse](t, call(t, handler, map[string]any{"target": "helper", "direction": "incoming"}))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "run", resp.References[0].Symbol.Name)
	assert.Equal(t, "main.py", resp.References[0].FilePath)

	assert.Contains(t, errorText(t, call(t, handler, map[string]any{"target": "nope"})), "not found")
	assert.Contains(t, errorText(t, call(t, handler, map[string]any{"target": "run", "direction": "sideways"})), "unknown direction")
}

func TestGraphTool(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	handler := createGraphHandler(f.deps.Graph)

	resp := decode[graph.QueryResponse](t, call(t, handler, map[string]any{
		"operation": "callers",
		"target":    "helper",
		"depth":     "2",
	}))
	var callers []string
	for _, r := range resp.Results {
		callers = append(callers, r.Node.Name)
		assert.NotEmpty(t, r.Context)
	}
	assert.ElementsMatch(t, []string{"run", "main"}, callers)

	resp = decode[graph.QueryResponse](t, call(t, handler, map[string]any{
		"operation":       "callees",
		"target":          "main",
		"include_context": "false",
	}))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "run", resp.Results[0].Node.Name)
	assert.Empty(t, resp.Results[0].Context)

	assert.Contains(t, errorText(t, call(t, handler, map[string]any{"operation": "dependents", "target": "main"})), "invalid operation")
	assert.Contains(t, errorText(t, call(t, handler, map[string]any{"operation": "callers", "target": "nope"})), "not found")
	assert.Contains(t, errorText(t, call(t, handler, map[string]any{"operation": "path", "target": "main"})), "to parameter")
}

func TestTraceTool(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	handler := createTraceHandler(f.deps.Graph)

	resp := decode[graph.QueryResponse](t, call(t, handler, map[string]any{"from": "main", "to": "helper"}))
	var path []string
	for _, r := range resp.Results {
		path = append(path, r.Node.Name)
	}
	assert.Equal(t, []string{"main", "run", "helper"}, path)

	resp = decode[graph.QueryResponse](t, call(t, handler, map[string]any{"from": "helper", "to": "main"}))
	assert.Empty(t, resp.Results)

	assert.Contains(t, errorText(t, call(t, handler, map[string]any{"from": "main"})), "required")
}

func TestStatusTool(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	resp := decode[StatusResponse](t, call(t, createStatusHandler(f.deps.Store), nil))
	assert.Equal(t, 2, resp.Files)
	assert.Equal(t, 2, resp.Relationships)
	assert.Equal(t, 0, resp.Unembedded)
	assert.Equal(t, resp.Embeddings, resp.Vectors)
	assert.Equal(t, 3, resp.ByKind[string(model.KindFunction)])
	assert.Equal(t, f.store.WorkspaceID(), resp.WorkspaceID)
	require.NotNil(t, resp.LastIndexed)
}
