package extraction

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"

	"github.com/mvp-joe/symgraph/internal/model"
)

// javascriptExtractor extracts JavaScript and JSX files.
type javascriptExtractor struct {
	base
}

func newJavaScriptExtractor() *javascriptExtractor {
	e := &javascriptExtractor{}
	e.base = newBase("javascript", sitter.NewLanguage(javascript.Language()), e)
	return e
}

func (e *javascriptExtractor) declare(fc *FileContext, n *sitter.Node, parent *model.Symbol) []*model.Symbol {
	return ecmaDeclare(fc, n, parent)
}

func (e *javascriptExtractor) refs(fc *FileContext, n *sitter.Node) []ref {
	if n.Kind() == "class_heritage" {
		// class A extends B: the heritage holds a single expression.
		var out []ref
		for i := uint(0); i < n.NamedChildCount(); i++ {
			if r, ok := ecmaTypeRef(fc, n.NamedChild(i), model.RelExtends); ok {
				out = append(out, r)
			}
		}
		return out
	}
	return ecmaCallRefs(fc, n)
}

func (e *javascriptExtractor) site(fc *FileContext, n *sitter.Node) (string, model.IdentifierKind, bool) {
	return ecmaSite(fc, n)
}

// ecmaDeclare handles the declarations JavaScript and TypeScript share.
func ecmaDeclare(fc *FileContext, n *sitter.Node, parent *model.Symbol) []*model.Symbol {
	switch n.Kind() {
	case "function_declaration", "generator_function_declaration", "function_signature":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindFunction, parent)
		ecmaDescribe(fc, n, sym)
		return []*model.Symbol{sym}

	case "class_declaration", "abstract_class_declaration", "class":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindClass, parent)
		sym.Signature = fc.Header(n)
		sym.DocComment = ecmaDoc(fc, n)
		return []*model.Symbol{sym}

	case "method_definition", "method_signature", "abstract_method_signature":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		kind := model.KindMethod
		if name == "constructor" {
			kind = model.KindConstructor
		}
		sym := fc.NewSymbol(n, name, kind, parent)
		ecmaDescribe(fc, n, sym)
		return []*model.Symbol{sym}

	case "field_definition", "public_field_definition", "property_signature":
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = n.ChildByFieldName("property")
		}
		name := fc.Text(nameNode)
		if name == "" || parent == nil {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindProperty, parent)
		sym.Signature = collapse(fc.Text(n))
		sym.Visibility = ecmaVisibility(fc, n, name)
		if typ := typeAnnotation(fc, n.ChildByFieldName("type")); typ != "" {
			sym.Metadata["type"] = typ
		}
		return []*model.Symbol{sym}

	case "variable_declarator":
		decl := n.Parent()
		if decl == nil {
			return nil
		}
		// Locals inside function bodies are not definitions.
		if parent != nil && parent.Kind.IsCallable() {
			return nil
		}
		nameNode := n.ChildByFieldName("name")
		if nameNode == nil || nameNode.Kind() != "identifier" {
			return nil
		}
		name := fc.Text(nameNode)
		keyword := ecmaKeyword(fc, decl)
		value := n.ChildByFieldName("value")

		kind := model.KindVariable
		if keyword == "const" {
			kind = model.KindConstant
		}
		isFunc := value != nil && (value.Kind() == "arrow_function" || value.Kind() == "function_expression" || value.Kind() == "function")
		if isFunc {
			kind = model.KindFunction
		}
		sym := fc.NewSymbol(n, name, kind, parent)
		sym.DocComment = ecmaDoc(fc, decl)
		if isFunc {
			sym.Signature = collapse(keyword + " " + name + " = " + fc.Header(value))
			if ret := typeAnnotation(fc, value.ChildByFieldName("return_type")); ret != "" {
				sym.Metadata["returns"] = ret
			}
		} else {
			sym.Signature = collapse(keyword + " " + fc.FirstLine(n))
			if typ := typeAnnotation(fc, n.ChildByFieldName("type")); typ != "" {
				sym.Metadata["type"] = typ
			}
		}
		return []*model.Symbol{sym}

	case "import_statement":
		source := unquote(fc.FieldText(n, "source"))
		clause := firstNamedOfKind(n, "import_clause")
		if clause == nil {
			return nil
		}
		var out []*model.Symbol
		add := func(at *sitter.Node, name, imported string) {
			sym := fc.NewSymbol(at, name, model.KindImport, nil)
			sym.Signature = collapse(fc.Text(n))
			sym.Metadata["source"] = source
			if imported != "" {
				sym.Metadata["imported"] = imported
			}
			out = append(out, sym)
		}
		for i := uint(0); i < clause.NamedChildCount(); i++ {
			c := clause.NamedChild(i)
			switch c.Kind() {
			case "identifier":
				add(c, fc.Text(c), "default")
			case "namespace_import":
				if id := firstNamedOfKind(c, "identifier"); id != nil {
					add(c, fc.Text(id), "*")
				}
			case "named_imports":
				for _, spec := range namedChildrenOfKind(c, "import_specifier") {
					imported := fc.FieldText(spec, "name")
					local := fc.FieldText(spec, "alias")
					if local == "" {
						local = imported
					}
					add(spec, local, imported)
				}
			}
		}
		return out
	}
	return nil
}

func ecmaDescribe(fc *FileContext, n *sitter.Node, sym *model.Symbol) {
	sym.Signature = fc.Header(n)
	sym.DocComment = ecmaDoc(fc, n)
	sym.Visibility = ecmaVisibility(fc, n, sym.Name)
	if ret := typeAnnotation(fc, n.ChildByFieldName("return_type")); ret != "" {
		sym.Metadata["returns"] = ret
	}
	if strings.HasPrefix(fc.Text(n), "async") {
		sym.Metadata["async"] = "true"
	}
}

// ecmaDoc finds the comment above a declaration, looking past an export wrapper.
func ecmaDoc(fc *FileContext, n *sitter.Node) string {
	if doc := fc.DocComment(n); doc != "" {
		return doc
	}
	if p := n.Parent(); p != nil && p.Kind() == "export_statement" {
		return fc.DocComment(p)
	}
	return ""
}

func ecmaKeyword(fc *FileContext, decl *sitter.Node) string {
	if decl.Kind() == "variable_declaration" {
		return "var"
	}
	if decl.ChildCount() > 0 {
		return fc.Text(decl.Child(0))
	}
	return "let"
}

func ecmaVisibility(fc *FileContext, n *sitter.Node, name string) model.Visibility {
	if strings.HasPrefix(name, "#") {
		return model.VisibilityPrivate
	}
	if mod := firstNamedOfKind(n, "accessibility_modifier"); mod != nil {
		switch fc.Text(mod) {
		case "private":
			return model.VisibilityPrivate
		case "protected":
			return model.VisibilityProtected
		}
	}
	return model.VisibilityPublic
}

// typeAnnotation renders a TypeScript type annotation without its leading colon.
func typeAnnotation(fc *FileContext, n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return collapse(strings.TrimPrefix(strings.TrimSpace(fc.Text(n)), ":"))
}

func ecmaCallRefs(fc *FileContext, n *sitter.Node) []ref {
	switch n.Kind() {
	case "call_expression":
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return nil
		}
		switch fn.Kind() {
		case "identifier":
			return []ref{{at: n, name: fc.Text(fn), kind: model.RelCalls}}
		case "member_expression":
			return []ref{{
				at:        n,
				name:      fc.FieldText(fn, "property"),
				qualifier: fc.FieldText(fn, "object"),
				kind:      model.RelCalls,
			}}
		}
	case "new_expression":
		if r, ok := ecmaTypeRef(fc, n.ChildByFieldName("constructor"), model.RelCalls); ok {
			r.at = n
			return []ref{r}
		}
	}
	return nil
}

// ecmaTypeRef turns an identifier, member expression or type name into a ref.
func ecmaTypeRef(fc *FileContext, n *sitter.Node, kind model.RelationshipKind) (ref, bool) {
	if n == nil {
		return ref{}, false
	}
	switch n.Kind() {
	case "identifier", "type_identifier":
		return ref{at: n, name: fc.Text(n), kind: kind}, true
	case "member_expression":
		return ref{at: n, name: fc.FieldText(n, "property"), qualifier: fc.FieldText(n, "object"), kind: kind}, true
	case "nested_type_identifier":
		return ref{at: n, name: fc.FieldText(n, "name"), qualifier: fc.FieldText(n, "module"), kind: kind}, true
	case "generic_type":
		return ecmaTypeRef(fc, n.ChildByFieldName("name"), kind)
	}
	return ref{}, false
}

func ecmaSite(fc *FileContext, n *sitter.Node) (string, model.IdentifierKind, bool) {
	switch n.Kind() {
	case "call_expression":
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return "", "", false
		}
		switch fn.Kind() {
		case "identifier":
			return fc.Text(fn), model.IdentCall, true
		case "member_expression":
			return fc.FieldText(fn, "property"), model.IdentCall, true
		}
	case "new_expression":
		if c := n.ChildByFieldName("constructor"); c != nil && c.Kind() == "identifier" {
			return fc.Text(c), model.IdentCall, true
		}
	case "member_expression":
		if isCallee(n, "call_expression", "function") {
			return "", "", false
		}
		return fc.FieldText(n, "property"), model.IdentMemberAccess, true
	case "identifier":
		switch parentKind(n) {
		case "arguments", "binary_expression", "unary_expression", "return_statement",
			"subscript_expression", "array", "template_substitution", "spread_element":
			return fc.Text(n), model.IdentVariableRef, true
		}
	}
	return "", "", false
}
