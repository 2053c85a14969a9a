package storage

// Test Plan for the full-text mirror:
// - buildFTSQuery quotes every word as a prefix term and splits identifiers
// - Punctuation and query syntax never reach FTS5 as operators
// - Name matches outrank doc comment matches
// - rebuildFTS restores a wiped mirror from the symbols table

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/symgraph/internal/model"
)

func TestBuildFTSQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"config", `"config"*`},
		{"loadConfig", `"load"* AND "config"*`},
		{"parse http", `"parse"* AND "http"*`},
		{`name:foo OR "bar"`, `"name"* AND "foo"* AND "or"* AND "bar"*`},
		{"  ***  ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, buildFTSQuery(tt.in), "input %q", tt.in)
	}
}

func TestSearchText_NameOutranksDoc(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewTestStore(t)

	named := testSymbol("a.go", "parse", model.KindFunction, 1)
	documented := testSymbol("a.go", "render", model.KindFunction, 10)
	documented.DocComment = "render may parse the template first."
	_, err := s.CommitFile(ctx, &FileUpdate{File: testFile("a.go"), Symbols: []*model.Symbol{documented, named}})
	require.NoError(t, err)

	hits, err := s.SearchText(ctx, "parse", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "parse", hits[0].Symbol.Name)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestRebuildFTS(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewTestStore(t)
	threeSymbolFile(t, s)

	_, err := s.DB().Exec("DELETE FROM symbols_fts")
	require.NoError(t, err)
	n, err := s.countFTS(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	require.NoError(t, s.rebuildFTS(ctx))
	n, err = s.countFTS(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hits, err := s.SearchText(ctx, "beta", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Beta", hits[0].Symbol.Name)
}
