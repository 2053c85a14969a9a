package extraction

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/mvp-joe/symgraph/internal/model"
)

// typescriptExtractor extracts TypeScript and TSX files. It understands the
// JavaScript declarations plus interfaces, type aliases, enums and namespaces.
type typescriptExtractor struct {
	base
}

func newTypeScriptExtractor(tsx bool) *typescriptExtractor {
	e := &typescriptExtractor{}
	lang := sitter.NewLanguage(typescript.LanguageTypescript())
	if tsx {
		lang = sitter.NewLanguage(typescript.LanguageTSX())
	}
	e.base = newBase("typescript", lang, e)
	return e
}

func (e *typescriptExtractor) declare(fc *FileContext, n *sitter.Node, parent *model.Symbol) []*model.Symbol {
	switch n.Kind() {
	case "interface_declaration":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindInterface, parent)
		sym.Signature = fc.Header(n)
		sym.DocComment = ecmaDoc(fc, n)
		return []*model.Symbol{sym}

	case "type_alias_declaration":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindType, parent)
		sym.Signature = collapse(fc.Text(n))
		sym.DocComment = ecmaDoc(fc, n)
		sym.Metadata["type"] = collapse(fc.FieldText(n, "value"))
		return []*model.Symbol{sym}

	case "enum_declaration":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindEnum, parent)
		sym.Signature = fc.Header(n)
		sym.DocComment = ecmaDoc(fc, n)
		return []*model.Symbol{sym}

	case "enum_assignment", "property_identifier":
		if parent == nil || parent.Kind != model.KindEnum || parentKind(n) == "enum_assignment" {
			return nil
		}
		name := fc.Text(n)
		if n.Kind() == "enum_assignment" {
			name = fc.FieldText(n, "name")
		}
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindEnumMember, parent)
		sym.Signature = collapse(fc.Text(n))
		return []*model.Symbol{sym}

	case "internal_module", "module":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, unquote(name), model.KindNamespace, parent)
		sym.Signature = fc.Header(n)
		return []*model.Symbol{sym}
	}
	return ecmaDeclare(fc, n, parent)
}

func (e *typescriptExtractor) refs(fc *FileContext, n *sitter.Node) []ref {
	switch n.Kind() {
	case "extends_clause":
		var out []ref
		for i := uint(0); i < n.NamedChildCount(); i++ {
			if r, ok := ecmaTypeRef(fc, n.NamedChild(i), model.RelExtends); ok {
				out = append(out, r)
			}
		}
		return out
	case "implements_clause", "extends_type_clause":
		kind := model.RelImplements
		if n.Kind() == "extends_type_clause" {
			kind = model.RelExtends
		}
		var out []ref
		for i := uint(0); i < n.NamedChildCount(); i++ {
			if r, ok := ecmaTypeRef(fc, n.NamedChild(i), kind); ok {
				out = append(out, r)
			}
		}
		return out
	}
	return ecmaCallRefs(fc, n)
}

func (e *typescriptExtractor) site(fc *FileContext, n *sitter.Node) (string, model.IdentifierKind, bool) {
	return ecmaSite(fc, n)
}
