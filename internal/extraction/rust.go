package extraction

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"

	"github.com/mvp-joe/symgraph/internal/model"
)

// rustExtractor extracts Rust files. Traits map to interfaces and impl blocks
// scope their functions under the implementing type.
type rustExtractor struct {
	base
}

func newRustExtractor() *rustExtractor {
	e := &rustExtractor{}
	e.base = newBase("rust", sitter.NewLanguage(rust.Language()), e)
	return e
}

var rustComments = []string{"line_comment", "block_comment"}

func (e *rustExtractor) declare(fc *FileContext, n *sitter.Node, parent *model.Symbol) []*model.Symbol {
	switch n.Kind() {
	case "function_item", "function_signature_item":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		if parent != nil && parent.Kind.IsCallable() {
			return nil
		}
		var sym *model.Symbol
		if impl := rustEnclosingImpl(n); impl != nil {
			typeName := rustTypeName(fc, impl.ChildByFieldName("type"))
			sym = fc.NewSymbolInScope(n, name, rustMethodKind(name), typeName)
			sym.Metadata["impl_type"] = typeName
			if trait := rustTypeName(fc, impl.ChildByFieldName("trait")); trait != "" {
				sym.Metadata["impl_trait"] = trait
			}
		} else if parent != nil && parent.Kind == model.KindInterface {
			sym = fc.NewSymbol(n, name, model.KindMethod, parent)
		} else {
			sym = fc.NewSymbol(n, name, model.KindFunction, parent)
		}
		sym.Signature = fc.Header(n)
		sym.DocComment = fc.DocComment(n, rustComments...)
		sym.Visibility = rustVisibility(n)
		if ret := fc.FieldText(n, "return_type"); ret != "" {
			sym.Metadata["returns"] = collapse(ret)
		}
		return []*model.Symbol{sym}

	case "struct_item", "enum_item", "union_item", "trait_item", "type_item":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		kind := map[string]model.SymbolKind{
			"struct_item": model.KindStruct,
			"enum_item":   model.KindEnum,
			"union_item":  model.KindUnion,
			"trait_item":  model.KindInterface,
			"type_item":   model.KindType,
		}[n.Kind()]
		sym := fc.NewSymbol(n, name, kind, parent)
		sym.Signature = fc.Header(n)
		if n.Kind() == "type_item" {
			sym.Signature = collapse(fc.Text(n))
			sym.Metadata["type"] = collapse(fc.FieldText(n, "type"))
		}
		sym.DocComment = fc.DocComment(n, rustComments...)
		sym.Visibility = rustVisibility(n)
		return []*model.Symbol{sym}

	case "field_declaration":
		if parent == nil || (parent.Kind != model.KindStruct && parent.Kind != model.KindUnion) {
			return nil
		}
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindField, parent)
		sym.Signature = collapse(fc.Text(n))
		sym.Visibility = rustVisibility(n)
		sym.Metadata["type"] = collapse(fc.FieldText(n, "type"))
		sym.DocComment = fc.DocComment(n, rustComments...)
		return []*model.Symbol{sym}

	case "enum_variant":
		if parent == nil || parent.Kind != model.KindEnum {
			return nil
		}
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindEnumMember, parent)
		sym.Signature = collapse(fc.Text(n))
		return []*model.Symbol{sym}

	case "const_item", "static_item":
		if parent != nil && parent.Kind.IsCallable() {
			return nil
		}
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		kind := model.KindConstant
		if n.Kind() == "static_item" {
			kind = model.KindVariable
		}
		sym := fc.NewSymbol(n, name, kind, parent)
		sym.Signature = collapse(fc.FirstLine(n))
		sym.Visibility = rustVisibility(n)
		sym.Metadata["type"] = collapse(fc.FieldText(n, "type"))
		sym.DocComment = fc.DocComment(n, rustComments...)
		return []*model.Symbol{sym}

	case "mod_item":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindModule, parent)
		sym.Signature = fc.Header(n)
		sym.Visibility = rustVisibility(n)
		return []*model.Symbol{sym}

	case "use_declaration":
		var out []*model.Symbol
		for _, u := range rustUses(fc, n.ChildByFieldName("argument"), "") {
			sym := fc.NewSymbol(n, u.alias, model.KindImport, nil)
			sym.Signature = collapse(fc.Text(n))
			sym.Metadata["source"] = u.source
			out = append(out, sym)
		}
		return out
	}
	return nil
}

func (e *rustExtractor) refs(fc *FileContext, n *sitter.Node) []ref {
	switch n.Kind() {
	case "call_expression":
		fn := n.ChildByFieldName("function")
		if fn != nil && fn.Kind() == "generic_function" {
			fn = fn.ChildByFieldName("function")
		}
		if fn == nil {
			return nil
		}
		switch fn.Kind() {
		case "identifier":
			return []ref{{at: n, name: fc.Text(fn), kind: model.RelCalls}}
		case "scoped_identifier":
			return []ref{{at: n, name: fc.FieldText(fn, "name"), qualifier: fc.FieldText(fn, "path"), kind: model.RelCalls}}
		case "field_expression":
			return []ref{{at: n, name: fc.FieldText(fn, "field"), qualifier: fc.FieldText(fn, "value"), kind: model.RelCalls}}
		}

	case "impl_item":
		trait := rustTypeName(fc, n.ChildByFieldName("trait"))
		typeName := rustTypeName(fc, n.ChildByFieldName("type"))
		if trait != "" && typeName != "" {
			return []ref{{at: n.ChildByFieldName("trait"), name: trait, kind: model.RelImplements, from: typeName}}
		}

	case "trait_item":
		bounds := n.ChildByFieldName("bounds")
		if bounds == nil {
			return nil
		}
		var out []ref
		for i := uint(0); i < bounds.NamedChildCount(); i++ {
			c := bounds.NamedChild(i)
			if name := rustTypeName(fc, c); name != "" {
				out = append(out, ref{at: c, name: name, kind: model.RelExtends})
			}
		}
		return out
	}
	return nil
}

func (e *rustExtractor) site(fc *FileContext, n *sitter.Node) (string, model.IdentifierKind, bool) {
	switch n.Kind() {
	case "call_expression":
		if refs := e.refs(fc, n); len(refs) == 1 {
			return refs[0].name, model.IdentCall, true
		}
	case "field_expression":
		if isCallee(n, "call_expression", "function") {
			return "", "", false
		}
		return fc.FieldText(n, "field"), model.IdentMemberAccess, true
	case "identifier":
		switch parentKind(n) {
		case "arguments", "binary_expression", "unary_expression", "return_expression",
			"index_expression", "array_expression", "tuple_expression", "reference_expression":
			return fc.Text(n), model.IdentVariableRef, true
		}
	}
	return "", "", false
}

// link attaches impl functions to types declared in the same file.
func (e *rustExtractor) link(symbols []*model.Symbol) {
	types := make(map[string]*model.Symbol)
	for _, s := range symbols {
		if s.Kind.IsType() {
			if _, dup := types[s.Name]; !dup {
				types[s.Name] = s
			}
		}
	}
	for _, s := range symbols {
		if s.ParentID != "" {
			continue
		}
		if t, ok := types[s.Metadata["impl_type"]]; ok {
			s.ParentID = t.ID
		}
	}
}

func rustMethodKind(name string) model.SymbolKind {
	if name == "new" {
		return model.KindConstructor
	}
	return model.KindMethod
}

func rustEnclosingImpl(n *sitter.Node) *sitter.Node {
	for p := n.Parent(); p != nil; p = p.Parent() {
		switch p.Kind() {
		case "impl_item":
			return p
		case "function_item", "mod_item", "trait_item":
			return nil
		}
	}
	return nil
}

// rustTypeName reduces a type expression to its bare name: Vec<T> -> Vec, a::B -> B.
func rustTypeName(fc *FileContext, n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Kind() {
	case "generic_type":
		return rustTypeName(fc, n.ChildByFieldName("type"))
	case "scoped_type_identifier":
		return fc.FieldText(n, "name")
	case "reference_type":
		return rustTypeName(fc, n.ChildByFieldName("type"))
	}
	text := fc.Text(n)
	if i := strings.IndexByte(text, '<'); i >= 0 {
		text = text[:i]
	}
	return lastSegment(strings.TrimSpace(text))
}

func rustVisibility(n *sitter.Node) model.Visibility {
	if firstNamedOfKind(n, "visibility_modifier") != nil {
		return model.VisibilityPublic
	}
	return model.VisibilityPrivate
}

type rustUse struct {
	alias  string
	source string
}

// rustUses flattens a use tree into (binding, source path) pairs.
func rustUses(fc *FileContext, n *sitter.Node, prefix string) []rustUse {
	if n == nil {
		return nil
	}
	join := func(a, b string) string {
		if a == "" {
			return b
		}
		if b == "" {
			return a
		}
		return a + "::" + b
	}
	switch n.Kind() {
	case "identifier", "crate", "self", "super":
		return []rustUse{{alias: fc.Text(n), source: prefix}}
	case "scoped_identifier":
		return []rustUse{{alias: fc.FieldText(n, "name"), source: join(prefix, fc.FieldText(n, "path"))}}
	case "use_as_clause":
		path := fc.FieldText(n, "path")
		return []rustUse{{alias: fc.FieldText(n, "alias"), source: join(prefix, trimSegment(path))}}
	case "scoped_use_list":
		return rustUses(fc, n.ChildByFieldName("list"), join(prefix, fc.FieldText(n, "path")))
	case "use_list":
		var out []rustUse
		for i := uint(0); i < n.NamedChildCount(); i++ {
			out = append(out, rustUses(fc, n.NamedChild(i), prefix)...)
		}
		return out
	}
	return nil
}
