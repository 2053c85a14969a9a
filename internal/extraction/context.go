package extraction

import (
	"fmt"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mvp-joe/symgraph/internal/model"
)

// FileContext carries everything an extractor needs for one file: the source,
// its workspace-relative path, the language, and the counters that keep symbol
// ids stable when names repeat. Each file gets its own instance.
type FileContext struct {
	Path     string
	Language string
	Source   []byte

	ordinals map[string]int
	chains   map[string][]string // symbol id -> name chain ending with the symbol itself
}

// NewFileContext creates the context for one file.
func NewFileContext(path, language string, source []byte) *FileContext {
	return &FileContext{
		Path:     path,
		Language: language,
		Source:   source,
		ordinals: make(map[string]int),
		chains:   make(map[string][]string),
	}
}

// Text returns the source text of n.
func (fc *FileContext) Text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Utf8Text(fc.Source)
}

// FieldText returns the text of n's child under field, or "".
func (fc *FileContext) FieldText(n *sitter.Node, field string) string {
	if n == nil {
		return ""
	}
	return fc.Text(n.ChildByFieldName(field))
}

// NewSymbol creates a symbol for node n nested under parent (nil at top level).
// An unknown kind is a bug in the calling extractor and panics.
func (fc *FileContext) NewSymbol(n *sitter.Node, name string, kind model.SymbolKind, parent *model.Symbol) *model.Symbol {
	var chain []string
	parentID := ""
	if parent != nil {
		chain = fc.chains[parent.ID]
		parentID = parent.ID
	}
	return fc.newSymbol(n, name, kind, chain, parentID)
}

// NewSymbolInScope creates a symbol whose identity is scoped under the named
// container even when the container is declared elsewhere (Go methods, Rust impls).
// The parent id is left for the extractor to link once the container is known.
func (fc *FileContext) NewSymbolInScope(n *sitter.Node, name string, kind model.SymbolKind, container string) *model.Symbol {
	var chain []string
	if container != "" {
		chain = []string{container}
	}
	return fc.newSymbol(n, name, kind, chain, "")
}

func (fc *FileContext) newSymbol(n *sitter.Node, name string, kind model.SymbolKind, chain []string, parentID string) *model.Symbol {
	if !kind.Valid() {
		panic(fmt.Sprintf("extraction: %s extractor emitted unknown symbol kind %q", fc.Language, kind))
	}

	key := string(kind) + "\x00" + strings.Join(chain, "\x1f") + "\x00" + name
	ordinal := fc.ordinals[key]
	fc.ordinals[key] = ordinal + 1

	id := model.SymbolID(fc.Path, kind, chain, name, ordinal)
	own := make([]string, 0, len(chain)+1)
	own = append(own, chain...)
	fc.chains[id] = append(own, name)

	start := n.StartPosition()
	end := n.EndPosition()
	return &model.Symbol{
		ID:          id,
		Name:        name,
		Kind:        kind,
		Language:    fc.Language,
		FilePath:    fc.Path,
		StartLine:   int(start.Row) + 1,
		StartColumn: int(start.Column),
		EndLine:     int(end.Row) + 1,
		EndColumn:   int(end.Column),
		StartByte:   int(n.StartByte()),
		EndByte:     int(n.EndByte()),
		Visibility:  model.VisibilityPublic,
		ParentID:    parentID,
		Metadata:    map[string]string{},
	}
}

// Header renders a declaration without its body, whitespace collapsed.
// Used as the default signature.
func (fc *FileContext) Header(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	end := n.EndByte()
	if body := n.ChildByFieldName("body"); body != nil {
		end = body.StartByte()
	}
	text := string(fc.Source[n.StartByte():end])
	return collapse(strings.TrimRight(strings.TrimSpace(text), "{:"))
}

// FirstLine returns the first source line of n, trimmed.
func (fc *FileContext) FirstLine(n *sitter.Node) string {
	text := fc.Text(n)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// DocComment collects the comment nodes directly above n (no blank line between),
// strips comment markers and joins them.
func (fc *FileContext) DocComment(n *sitter.Node, commentKinds ...string) string {
	if n == nil {
		return ""
	}
	if len(commentKinds) == 0 {
		commentKinds = []string{"comment"}
	}
	isComment := func(k string) bool {
		for _, c := range commentKinds {
			if k == c {
				return true
			}
		}
		return false
	}

	var lines []string
	expectRow := n.StartPosition().Row
	for prev := n.PrevSibling(); prev != nil && isComment(prev.Kind()); prev = prev.PrevSibling() {
		if prev.EndPosition().Row+1 < expectRow {
			break
		}
		lines = append([]string{cleanComment(fc.Text(prev))}, lines...)
		expectRow = prev.StartPosition().Row
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func cleanComment(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "/**")
	text = strings.TrimPrefix(text, "/*")
	text = strings.TrimSuffix(text, "*/")
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		for _, marker := range []string{"///", "//!", "//", "#", "*"} {
			if strings.HasPrefix(line, marker) {
				line = strings.TrimSpace(strings.TrimPrefix(line, marker))
				break
			}
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// unquote strips one layer of matching quotes or angle brackets.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') ||
			(first == '`' && last == '`') || (first == '<' && last == '>') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// lastSegment returns the final element of a qualified name such as a.b.c,
// a::b::c, a\b\c or a/b/c.
func lastSegment(s string) string {
	for _, sep := range []string{"::", "\\", ".", "/"} {
		if i := strings.LastIndex(s, sep); i >= 0 {
			s = s[i+len(sep):]
		}
	}
	return s
}

// trimSegment returns everything before the final element of a qualified name.
func trimSegment(s string) string {
	best := -1
	for _, sep := range []string{"::", "\\", ".", "/"} {
		if i := strings.LastIndex(s, sep); i > best {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return s[:best]
}
