package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/symgraph/internal/model"
)

func testSymbol(path, name string, kind model.SymbolKind, line int) *model.Symbol {
	return &model.Symbol{
		ID:         model.SymbolID(path, kind, nil, name, 0),
		Name:       name,
		Kind:       kind,
		Language:   "go",
		FilePath:   path,
		StartLine:  line,
		EndLine:    line + 2,
		StartByte:  line * 100,
		EndByte:    line*100 + 50,
		Signature:  "func " + name + "()",
		Visibility: model.VisibilityPublic,
	}
}

func testCall(from, to *model.Symbol, line int) *model.Relationship {
	return &model.Relationship{
		ID:           model.RelationshipID(from.ID, to.ID, model.RelCalls, from.FilePath, line),
		FromSymbolID: from.ID,
		ToSymbolID:   to.ID,
		Kind:         model.RelCalls,
		FilePath:     from.FilePath,
		LineNumber:   line,
		Confidence:   model.ConfidenceLocal,
	}
}

func testPending(from *model.Symbol, callee string, line int) *model.PendingRelationship {
	return &model.PendingRelationship{
		ID:           model.PendingID(from.ID, callee, model.RelCalls, from.FilePath, line),
		FromSymbolID: from.ID,
		CalleeName:   callee,
		Kind:         model.RelCalls,
		FilePath:     from.FilePath,
		LineNumber:   line,
		Confidence:   model.ConfidenceImported,
	}
}

func testFile(path string) *model.File {
	return &model.File{Path: path, Language: "go", Hash: model.ContentHash([]byte(path)), Size: 10}
}

// testVector is a unit vector along axis i.
func testVector(i int) []float32 {
	v := make([]float32, TestDimensions)
	v[i%TestDimensions] = 1
	return v
}

// threeSymbolFile commits pkg/a.go with A -> B -> C.
func threeSymbolFile(t *testing.T, s *Store) []*model.Symbol {
	t.Helper()

	a := testSymbol("pkg/a.go", "Alpha", model.KindFunction, 1)
	b := testSymbol("pkg/a.go", "Beta", model.KindFunction, 5)
	c := testSymbol("pkg/a.go", "Gamma", model.KindFunction, 9)
	_, err := s.CommitFile(context.Background(), &FileUpdate{
		File:          testFile("pkg/a.go"),
		Symbols:       []*model.Symbol{a, b, c},
		Relationships: []*model.Relationship{testCall(a, b, 2), testCall(b, c, 6)},
		Embeddings: []Embedding{
			{SymbolID: a.ID, Model: "test", TextHash: "a", Vector: testVector(0)},
			{SymbolID: b.ID, Model: "test", TextHash: "b", Vector: testVector(1)},
			{SymbolID: c.ID, Model: "test", TextHash: "c", Vector: testVector(2)},
		},
	})
	require.NoError(t, err)
	return []*model.Symbol{a, b, c}
}

func count(t *testing.T, s *Store, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, s.DB().QueryRow(query, args...).Scan(&n))
	return n
}
