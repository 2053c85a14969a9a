package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for model:
// - SymbolID is deterministic and hex encoded
// - SymbolID changes with each identity component (file, kind, parents, name, ordinal)
// - RelationshipID and PendingID are deterministic
// - Promote carries confidence and produces a stable id
// - ParseSymbolKind accepts the taxonomy and rejects unknown kinds
// - ParseDirection defaults to both
// - Wire records are flat, tagged and round-trip through DecodeRecords
// - DecodeRecords ignores unknown (newer) fields
// - NormalizePath produces workspace-relative forward-slash paths
// - SplitIdentifier splits camelCase, snake_case, acronyms and digits

func TestSymbolID_Deterministic(t *testing.T) {
	t.Parallel()

	a := SymbolID("pkg/utils.go", KindFunction, []string{"Outer"}, "helper", 0)
	b := SymbolID("pkg/utils.go", KindFunction, []string{"Outer"}, "helper", 0)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestSymbolID_Components(t *testing.T) {
	t.Parallel()

	base := SymbolID("a.go", KindFunction, nil, "f", 0)

	variants := map[string]string{
		"file":    SymbolID("b.go", KindFunction, nil, "f", 0),
		"kind":    SymbolID("a.go", KindMethod, nil, "f", 0),
		"parents": SymbolID("a.go", KindFunction, []string{"T"}, "f", 0),
		"name":    SymbolID("a.go", KindFunction, nil, "g", 0),
		"ordinal": SymbolID("a.go", KindFunction, nil, "f", 1),
	}
	for component, id := range variants {
		assert.NotEqual(t, base, id, "changing %s should change the id", component)
	}

	// Parent chains must not be confused with concatenated names.
	assert.NotEqual(t,
		SymbolID("a.go", KindMethod, []string{"AB"}, "c", 0),
		SymbolID("a.go", KindMethod, []string{"A", "B"}, "c", 0))
}

func TestRelationshipIDs(t *testing.T) {
	t.Parallel()

	r1 := RelationshipID("from", "to", RelCalls, "main.go", 3)
	r2 := RelationshipID("from", "to", RelCalls, "main.go", 3)
	assert.Equal(t, r1, r2)
	assert.NotEqual(t, r1, RelationshipID("from", "to", RelUses, "main.go", 3))

	p1 := PendingID("from", "helper", RelCalls, "main.go", 3)
	assert.Equal(t, p1, PendingID("from", "helper", RelCalls, "main.go", 3))
	assert.NotEqual(t, p1, PendingID("from", "helper", RelCalls, "main.go", 4))
}

func TestPromote(t *testing.T) {
	t.Parallel()

	p := &PendingRelationship{
		FromSymbolID: "caller",
		CalleeName:   "helper",
		Kind:         RelCalls,
		FilePath:     "main.go",
		LineNumber:   7,
		Confidence:   ConfidenceImported,
	}

	r1 := p.Promote("target")
	r2 := p.Promote("target")

	assert.Equal(t, r1.ID, r2.ID)
	assert.Equal(t, "caller", r1.FromSymbolID)
	assert.Equal(t, "target", r1.ToSymbolID)
	assert.Equal(t, RelCalls, r1.Kind)
	assert.Equal(t, ConfidenceImported, r1.Confidence)
	assert.Equal(t, 7, r1.LineNumber)
}

func TestParseSymbolKind(t *testing.T) {
	t.Parallel()

	k, err := ParseSymbolKind("Enum_Member")
	require.NoError(t, err)
	assert.Equal(t, KindEnumMember, k)

	_, err = ParseSymbolKind("trait")
	assert.Error(t, err)

	assert.True(t, KindMethod.IsCallable())
	assert.False(t, KindClass.IsCallable())
	assert.True(t, KindInterface.IsType())
	assert.True(t, KindImport.IsBinding())
}

func TestParseDirection(t *testing.T) {
	t.Parallel()

	d, err := ParseDirection("")
	require.NoError(t, err)
	assert.Equal(t, DirectionBoth, d)

	d, err = ParseDirection("Incoming")
	require.NoError(t, err)
	assert.Equal(t, DirectionIncoming, d)

	_, err = ParseDirection("sideways")
	assert.Error(t, err)
}

func TestWireRecords(t *testing.T) {
	t.Parallel()

	sym := &Symbol{
		ID:         "abc",
		Name:       "helper",
		Kind:       KindFunction,
		Language:   "go",
		FilePath:   "utils.go",
		StartLine:  3,
		EndLine:    5,
		Signature:  "func helper(n int) int",
		Visibility: VisibilityPublic,
		Metadata:   map[string]string{"receiver": ""},
	}
	rel := &Relationship{ID: "r1", FromSymbolID: "a", ToSymbolID: "b", Kind: RelCalls, FilePath: "main.go", LineNumber: 2, Confidence: 0.9}
	pending := &PendingRelationship{ID: "p1", FromSymbolID: "a", CalleeName: "helper", Kind: RelCalls, FilePath: "main.go", LineNumber: 4, Confidence: 0.7}

	var buf bytes.Buffer
	require.NoError(t, EncodeRecords(&buf, sym, rel, pending))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	// Records are flat: symbol fields sit next to the envelope fields.
	var flat map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &flat))
	assert.Equal(t, "symbol", flat["record_type"])
	assert.EqualValues(t, SchemaVersion, flat["schema_version"])
	assert.Equal(t, "helper", flat["name"])
	assert.Equal(t, "utils.go", flat["file_path"])
	assert.Equal(t, "function", flat["kind"])
	assert.NotContains(t, flat, "confidence", "search-time fields are omitted at extraction time")

	decoded, err := DecodeRecords(&buf)
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	assert.Equal(t, sym, decoded[0])
	assert.Equal(t, rel, decoded[1])
	assert.Equal(t, pending, decoded[2])
}

func TestDecodeRecords_IgnoresNewerFields(t *testing.T) {
	t.Parallel()

	input := `{"record_type":"relationship","schema_version":2,"id":"r","from_symbol_id":"a","to_symbol_id":"b","kind":"extends","file_path":"x.py","line_number":1,"confidence":0.9,"weight":3}`

	decoded, err := DecodeRecords(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, decoded, 1)

	rel, ok := decoded[0].(*Relationship)
	require.True(t, ok)
	assert.Equal(t, RelExtends, rel.Kind)

	_, err = DecodeRecords(strings.NewReader(`{"record_type":"widget"}`))
	assert.Error(t, err)
}

func TestNormalizePath(t *testing.T) {
	t.Parallel()

	p, err := NormalizePath("/ws", "/ws/src/app/main.go")
	require.NoError(t, err)
	assert.Equal(t, "src/app/main.go", p)

	p, err = NormalizePath("/ws", "./src/../lib/util.py")
	require.NoError(t, err)
	assert.Equal(t, "lib/util.py", p)

	_, err = NormalizePath("/ws", "/elsewhere/x.go")
	assert.Error(t, err)
}

func TestEmbeddingText(t *testing.T) {
	t.Parallel()

	s := &Symbol{Signature: "def helper(n)", DocComment: "Doubles n."}
	assert.Equal(t, "def helper(n)\nDoubles n.", s.EmbeddingText())
	assert.Empty(t, (&Symbol{Name: "x"}).EmbeddingText())
}

func TestSplitIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"helper", []string{"helper"}},
		{"parseHTTPRequest", []string{"parse", "http", "request"}},
		{"snake_case_name", []string{"snake", "case", "name"}},
		{"UserService", []string{"user", "service"}},
		{"v2Handler", []string{"v", "2", "handler"}},
		{"$value", []string{"value"}},
		{"", nil},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitIdentifier(tt.in), tt.in)
	}

	assert.Equal(t, "func load config path string", Terms("func loadConfig(path string)"))
}
