package resolver

// Test Plan for SelectCandidate:
// - No candidates, or only bindings, resolves nothing
// - Kind-compatible candidates win over others
// - Same language beats import match, import match beats same directory
// - Same directory beats path order; path, line and id break the remaining ties
// - The choice does not depend on candidate order
// - normalizeImport handles relative, dotted, Rust and quoted sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/symgraph/internal/model"
	"github.com/mvp-joe/symgraph/internal/storage"
)

func cand(id, path, lang string, kind model.SymbolKind, line int) storage.Candidate {
	return storage.Candidate{ID: id, Name: "helper", Kind: kind, Language: lang, FilePath: path, StartLine: line}
}

func pendingCall(path string) *model.PendingRelationship {
	return &model.PendingRelationship{ID: "p", FromSymbolID: "caller", CalleeName: "helper", Kind: model.RelCalls, FilePath: path, LineNumber: 3}
}

func pick(t *testing.T, p *model.PendingRelationship, caller *storage.CallerFile, cands ...storage.Candidate) string {
	t.Helper()
	c, ok := SelectCandidate(p, caller, cands)
	require.True(t, ok)

	// Reversed input must give the same answer.
	rev := make([]storage.Candidate, len(cands))
	for i, c := range cands {
		rev[len(cands)-1-i] = c
	}
	c2, ok := SelectCandidate(p, caller, rev)
	require.True(t, ok)
	require.Equal(t, c.ID, c2.ID)
	return c.ID
}

func TestSelectCandidate_NothingToPick(t *testing.T) {
	t.Parallel()
	p := pendingCall("main.go")

	_, ok := SelectCandidate(p, nil, nil)
	assert.False(t, ok)

	_, ok = SelectCandidate(p, nil, []storage.Candidate{cand("imp", "main.go", "go", model.KindImport, 1)})
	assert.False(t, ok, "bindings are never targets")

	_, ok = SelectCandidate(p, nil, []storage.Candidate{cand("caller", "main.go", "go", model.KindFunction, 1)})
	assert.False(t, ok, "a row never resolves to its own source")
}

func TestSelectCandidate_PrefersCompatibleKinds(t *testing.T) {
	t.Parallel()
	p := pendingCall("main.go")
	got := pick(t, p, nil,
		cand("var", "a/a.go", "go", model.KindVariable, 1),
		cand("fn", "z/z.go", "go", model.KindFunction, 9),
	)
	assert.Equal(t, "fn", got)

	ext := &model.PendingRelationship{ID: "e", FromSymbolID: "child", CalleeName: "Base", Kind: model.RelExtends, FilePath: "main.go"}
	got = pick(t, ext, nil,
		cand("fn", "a/a.go", "go", model.KindFunction, 1),
		cand("cls", "b/b.go", "go", model.KindClass, 1),
	)
	assert.Equal(t, "cls", got)

	// Incompatible candidates still resolve when nothing else exists.
	got = pick(t, p, nil, cand("var", "a/a.go", "go", model.KindVariable, 1))
	assert.Equal(t, "var", got)
}

func TestSelectCandidate_TieBreakOrder(t *testing.T) {
	t.Parallel()
	p := pendingCall("app/main.py")
	caller := &storage.CallerFile{
		Path:     "app/main.py",
		Language: "python",
		Imports:  []storage.ImportRef{{Name: "helper", Source: "lib.utils", Imported: "helper"}},
	}

	sameLang := cand("py", "zz/other.py", "python", model.KindFunction, 1)
	otherLang := cand("js", "app/helper.js", "javascript", model.KindFunction, 1)
	assert.Equal(t, "py", pick(t, p, caller, sameLang, otherLang))

	imported := cand("imp", "lib/utils.py", "python", model.KindFunction, 5)
	sameDir := cand("dir", "app/local.py", "python", model.KindFunction, 1)
	assert.Equal(t, "imp", pick(t, p, caller, sameDir, imported, sameLang))

	assert.Equal(t, "dir", pick(t, p, caller, sameDir, sameLang))

	a := cand("a", "x/a.py", "python", model.KindFunction, 7)
	b := cand("b", "x/b.py", "python", model.KindFunction, 1)
	assert.Equal(t, "a", pick(t, p, caller, b, a), "lexicographic path")

	early := cand("early", "x/a.py", "python", model.KindFunction, 2)
	assert.Equal(t, "early", pick(t, p, caller, a, early), "then line")

	id1 := cand("id1", "x/a.py", "python", model.KindFunction, 2)
	assert.Equal(t, "early", pick(t, p, caller, id1, early), "then id")
}

func TestSelectCandidate_NoCallerInfo(t *testing.T) {
	t.Parallel()
	p := pendingCall("cmd/main.go")
	got := pick(t, p, nil,
		cand("far", "a/helper.go", "go", model.KindFunction, 1),
		cand("near", "cmd/helper.go", "go", model.KindFunction, 1),
	)
	assert.Equal(t, "near", got)
}

func TestNormalizeImport(t *testing.T) {
	t.Parallel()
	tests := []struct {
		src, dir, want string
	}{
		{"./utils", "src/app", "src/app/utils"},
		{"../lib/helpers.js", "src/app", "src/lib/helpers"},
		{".utils", "pkg", "pkg/utils"},
		{"..core.models", "pkg/api", "pkg/core/models"},
		{"lib.utils", "app", "lib/utils"},
		{"crate::net::client", "src", "net/client"},
		{`"example.com/utils"`, "cmd", "example/com/utils"},
		{"<stdio.h>", "src", "stdio"},
		{"App\\Models\\User", "src", "App/Models/User"},
		{"", "src", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeImport(tt.src, tt.dir), tt.src)
	}
}

func TestMatchesImport(t *testing.T) {
	t.Parallel()
	assert.True(t, matchesImport("lib/utils.py", []string{"lib/utils"}))
	assert.True(t, matchesImport("src/net/client.rs", []string{"net/client"}))
	assert.True(t, matchesImport("utils/a.go", []string{"example/com/utils"}))
	assert.False(t, matchesImport("myutils/a.go", []string{"utils"}))
	assert.False(t, matchesImport("lib/utils.py", nil))
}
