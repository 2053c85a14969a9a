package extraction

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mvp-joe/symgraph/internal/model"
)

// ref is an edge discovered at a node: a call, a supertype, a receiver use.
type ref struct {
	at        *sitter.Node
	name      string
	qualifier string // module or receiver expression before the name, if any
	kind      model.RelationshipKind
	from      string // explicit source type name; empty means the enclosing symbol
}

// grammar is the per-language node-kind dispatch used by the shared walker.
type grammar interface {
	// declare returns the symbols n declares. The first one becomes the parent
	// of declarations nested under n.
	declare(fc *FileContext, n *sitter.Node, parent *model.Symbol) []*model.Symbol

	// refs returns the edges that originate at n.
	refs(fc *FileContext, n *sitter.Node) []ref

	// site classifies n as a usage site.
	site(fc *FileContext, n *sitter.Node) (string, model.IdentifierKind, bool)
}

// linker is implemented by grammars that attach parents after the walk, when a
// container may be declared after its members.
type linker interface {
	link(symbols []*model.Symbol)
}

// base implements Extractor on top of a grammar.
type base struct {
	lang     string
	language *sitter.Language
	g        grammar
}

func newBase(lang string, language *sitter.Language, g grammar) base {
	return base{lang: lang, language: language, g: g}
}

func (b *base) Language() string          { return b.lang }
func (b *base) Grammar() *sitter.Language { return b.language }

// ExtractSymbols walks the tree depth-first and collects declarations.
func (b *base) ExtractSymbols(fc *FileContext, root *sitter.Node) []*model.Symbol {
	var symbols []*model.Symbol

	var walk func(n *sitter.Node, parent *model.Symbol)
	walk = func(n *sitter.Node, parent *model.Symbol) {
		if n == nil || n.IsMissing() {
			return
		}
		scope := parent
		if !n.IsError() {
			if declared := b.g.declare(fc, n, parent); len(declared) > 0 {
				symbols = append(symbols, declared...)
				scope = declared[0]
			}
		}
		for i := uint(0); i < n.NamedChildCount(); i++ {
			walk(n.NamedChild(i), scope)
		}
	}
	walk(root, nil)

	if l, ok := b.g.(linker); ok {
		l.link(symbols)
	}
	return symbols
}

// ExtractRelationships applies the local-resolution rule: an edge is resolved
// only when its target is a non-import symbol of this file. Edges through an
// import binding are pending at ConfidenceImported, unknown names at
// ConfidenceUnknown.
func (b *base) ExtractRelationships(fc *FileContext, root *sitter.Node, symbols []*model.Symbol) ([]*model.Relationship, []*model.PendingRelationship) {
	idx := newLocalIndex(symbols)

	var rels []*model.Relationship
	var pending []*model.PendingRelationship
	seen := make(map[string]bool)

	visit(root, func(n *sitter.Node) {
		for _, r := range b.g.refs(fc, n) {
			if r.name == "" || r.at == nil {
				continue
			}

			var from *model.Symbol
			if r.from != "" {
				from = idx.definition(r.from, model.SymbolKind.IsType)
			} else {
				from = idx.enclosing(int(r.at.StartByte()), sourceKinds(r.kind))
			}
			if from == nil {
				continue
			}
			line := int(r.at.StartPosition().Row) + 1

			imported := (r.qualifier != "" && idx.isImport(rootOf(r.qualifier))) || idx.isImport(r.name)
			if !imported {
				if target := idx.definition(r.name, targetKinds(r.kind)); target != nil {
					rel := &model.Relationship{
						ID:           model.RelationshipID(from.ID, target.ID, r.kind, fc.Path, line),
						FromSymbolID: from.ID,
						ToSymbolID:   target.ID,
						Kind:         r.kind,
						FilePath:     fc.Path,
						LineNumber:   line,
						Confidence:   model.ConfidenceLocal,
					}
					if !seen[rel.ID] {
						seen[rel.ID] = true
						rels = append(rels, rel)
					}
					continue
				}
			}

			confidence := model.ConfidenceUnknown
			if imported {
				confidence = model.ConfidenceImported
			}
			p := &model.PendingRelationship{
				ID:           model.PendingID(from.ID, r.name, r.kind, fc.Path, line),
				FromSymbolID: from.ID,
				CalleeName:   r.name,
				Kind:         r.kind,
				FilePath:     fc.Path,
				LineNumber:   line,
				Confidence:   confidence,
			}
			if !seen[p.ID] {
				seen[p.ID] = true
				pending = append(pending, p)
			}
		}
	})

	return rels, pending
}

// ExtractIdentifiers collects usage sites, tagging each with the innermost
// enclosing symbol and, when the name is defined in this file, its target.
func (b *base) ExtractIdentifiers(fc *FileContext, root *sitter.Node, symbols []*model.Symbol) []*model.Identifier {
	idx := newLocalIndex(symbols)
	lines := strings.Split(string(fc.Source), "\n")

	var out []*model.Identifier
	visit(root, func(n *sitter.Node) {
		name, kind, ok := b.g.site(fc, n)
		if !ok || name == "" {
			return
		}
		start, end := n.StartPosition(), n.EndPosition()
		ident := &model.Identifier{
			ID:          model.IdentifierID(fc.Path, kind, name, int(n.StartByte())),
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
			Confidence:  model.ConfidenceUnknown,
		}
		if int(start.Row) < len(lines) {
			ident.CodeContext = strings.TrimSpace(lines[start.Row])
		}
		if container := idx.enclosing(ident.StartByte, anyDefinition); container != nil {
			ident.ContainingSymbolID = container.ID
		}
		if target := idx.definition(name, identTargetKinds(kind)); target != nil {
			ident.TargetSymbolID = target.ID
			ident.Confidence = model.ConfidenceLocal
		}
		out = append(out, ident)
	})
	return out
}

// InferTypes reports the declared or returned type each extractor recorded in
// symbol metadata while walking declarations.
func (b *base) InferTypes(symbols []*model.Symbol) map[string]string {
	types := make(map[string]string)
	for _, s := range symbols {
		if t := s.Metadata["type"]; t != "" {
			types[s.ID] = t
		} else if t := s.Metadata["returns"]; t != "" {
			types[s.ID] = t
		}
	}
	return types
}

// visit calls fn for every named node in document order.
func visit(n *sitter.Node, fn func(*sitter.Node)) {
	if n == nil {
		return
	}
	fn(n)
	for i := uint(0); i < n.NamedChildCount(); i++ {
		visit(n.NamedChild(i), fn)
	}
}

// localIndex answers name and position lookups over one file's symbols.
type localIndex struct {
	symbols []*model.Symbol
	byName  map[string][]*model.Symbol
	imports map[string]bool
}

func newLocalIndex(symbols []*model.Symbol) *localIndex {
	idx := &localIndex{
		symbols: symbols,
		byName:  make(map[string][]*model.Symbol),
		imports: make(map[string]bool),
	}
	for _, s := range symbols {
		if s.Kind.IsBinding() {
			if s.Kind == model.KindImport {
				idx.imports[s.Name] = true
			}
			continue
		}
		idx.byName[s.Name] = append(idx.byName[s.Name], s)
	}
	return idx
}

func (idx *localIndex) isImport(name string) bool {
	return idx.imports[name]
}

// definition returns the first non-import symbol named name whose kind passes accept.
func (idx *localIndex) definition(name string, accept func(model.SymbolKind) bool) *model.Symbol {
	for _, s := range idx.byName[name] {
		if accept(s.Kind) {
			return s
		}
	}
	return nil
}

// enclosing returns the innermost symbol spanning offset whose kind passes accept.
func (idx *localIndex) enclosing(offset int, accept func(model.SymbolKind) bool) *model.Symbol {
	var best *model.Symbol
	for _, s := range idx.symbols {
		if s.Kind.IsBinding() || !accept(s.Kind) || !s.Contains(offset) {
			continue
		}
		if best == nil || s.EndByte-s.StartByte < best.EndByte-best.StartByte {
			best = s
		}
	}
	return best
}

func sourceKinds(kind model.RelationshipKind) func(model.SymbolKind) bool {
	switch kind {
	case model.RelExtends, model.RelImplements:
		return model.SymbolKind.IsType
	case model.RelUses:
		return func(k model.SymbolKind) bool { return k.IsCallable() || k.IsType() }
	}
	return model.SymbolKind.IsCallable
}

func targetKinds(kind model.RelationshipKind) func(model.SymbolKind) bool {
	switch kind {
	case model.RelCalls:
		return func(k model.SymbolKind) bool { return k.IsCallable() || k.IsType() }
	}
	return model.SymbolKind.IsType
}

func identTargetKinds(kind model.IdentifierKind) func(model.SymbolKind) bool {
	switch kind {
	case model.IdentCall:
		return func(k model.SymbolKind) bool { return k.IsCallable() || k.IsType() }
	case model.IdentMemberAccess:
		return func(k model.SymbolKind) bool {
			switch k {
			case model.KindField, model.KindProperty, model.KindMethod, model.KindEnumMember, model.KindConstant:
				return true
			}
			return false
		}
	}
	return func(k model.SymbolKind) bool {
		switch k {
		case model.KindVariable, model.KindConstant, model.KindField, model.KindProperty, model.KindEnumMember:
			return true
		}
		return false
	}
}

func anyDefinition(model.SymbolKind) bool { return true }

// rootOf returns the leading identifier of a qualifier such as pkg.sub or a::b.
func rootOf(qualifier string) string {
	end := len(qualifier)
	for _, sep := range []string{".", "::", "\\", "->"} {
		if i := strings.Index(qualifier, sep); i >= 0 && i < end {
			end = i
		}
	}
	return qualifier[:end]
}
