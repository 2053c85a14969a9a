package extraction

import (
	"path"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	c "github.com/tree-sitter/tree-sitter-c/bindings/go"

	"github.com/mvp-joe/symgraph/internal/model"
)

// cExtractor extracts C sources and headers. Prototypes are not symbols; only
// definitions are, so a header and its implementation do not compete.
type cExtractor struct {
	base
}

func newCExtractor() *cExtractor {
	e := &cExtractor{}
	e.base = newBase("c", sitter.NewLanguage(c.Language()), e)
	return e
}

func (e *cExtractor) declare(fc *FileContext, n *sitter.Node, parent *model.Symbol) []*model.Symbol {
	switch n.Kind() {
	case "function_definition":
		name := cDeclaratorName(fc, n.ChildByFieldName("declarator"))
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindFunction, nil)
		sym.Signature = fc.Header(n)
		sym.DocComment = fc.DocComment(n)
		sym.Visibility = cVisibility(fc, n)
		if ret := fc.FieldText(n, "type"); ret != "" {
			sym.Metadata["returns"] = collapse(ret)
		}
		return []*model.Symbol{sym}

	case "struct_specifier", "union_specifier", "enum_specifier":
		name := fc.FieldText(n, "name")
		if name == "" || n.ChildByFieldName("body") == nil {
			return nil
		}
		sym := fc.NewSymbol(n, name, cSpecifierKind(n.Kind()), parent)
		sym.Signature = fc.Header(n)
		if parent == nil {
			sym.DocComment = fc.DocComment(n)
		}
		return []*model.Symbol{sym}

	case "type_definition":
		name := cDeclaratorName(fc, n.ChildByFieldName("declarator"))
		if name == "" {
			return nil
		}
		kind := model.KindType
		// typedef struct { ... } Name; takes the typedef name for the anonymous body.
		if spec := n.ChildByFieldName("type"); spec != nil && spec.ChildByFieldName("body") != nil && spec.ChildByFieldName("name") == nil {
			switch spec.Kind() {
			case "struct_specifier", "union_specifier", "enum_specifier":
				kind = cSpecifierKind(spec.Kind())
			}
		}
		sym := fc.NewSymbol(n, name, kind, parent)
		sym.Signature = collapse(fc.FirstLine(n))
		sym.DocComment = fc.DocComment(n)
		if spec := n.ChildByFieldName("type"); kind == model.KindType && spec != nil {
			if spec.ChildByFieldName("body") != nil {
				sym.Metadata["type"] = collapse(fc.Header(spec))
			} else {
				sym.Metadata["type"] = collapse(fc.Text(spec))
			}
		}
		return []*model.Symbol{sym}

	case "field_declaration":
		if parent == nil || (parent.Kind != model.KindStruct && parent.Kind != model.KindUnion) {
			return nil
		}
		typ := collapse(fc.FieldText(n, "type"))
		var out []*model.Symbol
		for i := uint(0); i < n.NamedChildCount(); i++ {
			d := n.NamedChild(i)
			if !isDeclarator(d) {
				continue
			}
			name := cDeclaratorName(fc, d)
			if name == "" {
				continue
			}
			sym := fc.NewSymbol(n, name, model.KindField, parent)
			sym.Signature = collapse(strings.TrimSuffix(fc.Text(n), ";"))
			sym.Metadata["type"] = typ
			out = append(out, sym)
		}
		return out

	case "enumerator":
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

	case "declaration":
		if parent != nil {
			return nil
		}
		kind := model.KindVariable
		for _, q := range namedChildrenOfKind(n, "type_qualifier") {
			if fc.Text(q) == "const" {
				kind = model.KindConstant
			}
		}
		typ := collapse(fc.FieldText(n, "type"))
		var out []*model.Symbol
		for i := uint(0); i < n.NamedChildCount(); i++ {
			d := n.NamedChild(i)
			if !isDeclarator(d) || cIsPrototype(d) {
				continue
			}
			name := cDeclaratorName(fc, d)
			if name == "" {
				continue
			}
			sym := fc.NewSymbol(n, name, kind, nil)
			sym.Signature = collapse(strings.TrimSuffix(fc.FirstLine(n), ";"))
			sym.DocComment = fc.DocComment(n)
			sym.Visibility = cVisibility(fc, n)
			sym.Metadata["type"] = typ
			out = append(out, sym)
		}
		return out

	case "preproc_def", "preproc_function_def":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		kind := model.KindConstant
		if n.Kind() == "preproc_function_def" {
			kind = model.KindFunction
		}
		sym := fc.NewSymbol(n, name, kind, nil)
		sym.Signature = collapse(fc.FirstLine(n))
		sym.DocComment = fc.DocComment(n)
		sym.Metadata["macro"] = "true"
		return []*model.Symbol{sym}

	case "preproc_include":
		source := unquote(fc.FieldText(n, "path"))
		if source == "" {
			return nil
		}
		file := path.Base(source)
		sym := fc.NewSymbol(n, strings.TrimSuffix(file, path.Ext(file)), model.KindImport, nil)
		sym.Signature = collapse(fc.Text(n))
		sym.Metadata["source"] = source
		if strings.HasPrefix(fc.FieldText(n, "path"), "<") {
			sym.Metadata["system"] = "true"
		}
		return []*model.Symbol{sym}
	}
	return nil
}

func (e *cExtractor) refs(fc *FileContext, n *sitter.Node) []ref {
	if n.Kind() != "call_expression" {
		return nil
	}
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return nil
	}
	switch fn.Kind() {
	case "identifier":
		return []ref{{at: n, name: fc.Text(fn), kind: model.RelCalls}}
	case "field_expression":
		return []ref{{at: n, name: fc.FieldText(fn, "field"), qualifier: fc.FieldText(fn, "argument"), kind: model.RelCalls}}
	}
	return nil
}

func (e *cExtractor) site(fc *FileContext, n *sitter.Node) (string, model.IdentifierKind, bool) {
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
		case "argument_list", "binary_expression", "unary_expression", "return_statement",
			"subscript_expression", "initializer_list", "pointer_expression", "update_expression":
			return fc.Text(n), model.IdentVariableRef, true
		}
	}
	return "", "", false
}

func cSpecifierKind(kind string) model.SymbolKind {
	switch kind {
	case "union_specifier":
		return model.KindUnion
	case "enum_specifier":
		return model.KindEnum
	}
	return model.KindStruct
}

// cDeclaratorName digs through pointer, array, function and init declarators
// to the declared name.
func cDeclaratorName(fc *FileContext, n *sitter.Node) string {
	for n != nil {
		switch n.Kind() {
		case "identifier", "field_identifier", "type_identifier":
			return fc.Text(n)
		case "parenthesized_declarator":
			n = n.NamedChild(0)
			continue
		}
		n = n.ChildByFieldName("declarator")
	}
	return ""
}

func isDeclarator(n *sitter.Node) bool {
	switch n.Kind() {
	case "identifier", "field_identifier", "init_declarator", "pointer_declarator",
		"array_declarator", "function_declarator", "parenthesized_declarator":
		return true
	}
	return false
}

// cIsPrototype reports whether a declarator declares a function rather than an object.
func cIsPrototype(n *sitter.Node) bool {
	for n != nil {
		switch n.Kind() {
		case "function_declarator":
			return true
		case "init_declarator", "identifier":
			return false
		}
		n = n.ChildByFieldName("declarator")
	}
	return false
}

func cVisibility(fc *FileContext, n *sitter.Node) model.Visibility {
	for _, s := range namedChildrenOfKind(n, "storage_class_specifier") {
		if fc.Text(s) == "static" {
			return model.VisibilityPrivate
		}
	}
	return model.VisibilityPublic
}
