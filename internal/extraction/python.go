package extraction

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"

	"github.com/mvp-joe/symgraph/internal/model"
)

// pythonExtractor extracts Python files.
type pythonExtractor struct {
	base
}

func newPythonExtractor() *pythonExtractor {
	e := &pythonExtractor{}
	e.base = newBase("python", sitter.NewLanguage(python.Language()), e)
	return e
}

func (e *pythonExtractor) declare(fc *FileContext, n *sitter.Node, parent *model.Symbol) []*model.Symbol {
	switch n.Kind() {
	case "class_definition":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindClass, parent)
		sym.Signature = fc.Header(n)
		sym.DocComment = pythonDocstring(fc, n)
		sym.Visibility = pythonVisibility(name)
		return []*model.Symbol{sym}

	case "function_definition":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		kind := model.KindFunction
		if parent != nil && parent.Kind == model.KindClass {
			kind = model.KindMethod
			if name == "__init__" {
				kind = model.KindConstructor
			}
		}
		sym := fc.NewSymbol(n, name, kind, parent)
		sym.Signature = fc.Header(n)
		if strings.HasPrefix(fc.Text(n), "async") {
			sym.Metadata["async"] = "true"
		}
		sym.DocComment = pythonDocstring(fc, n)
		sym.Visibility = pythonVisibility(name)
		if ret := fc.FieldText(n, "return_type"); ret != "" {
			sym.Metadata["returns"] = ret
		}
		if decorators := pythonDecorators(fc, n); decorators != "" {
			sym.Metadata["decorators"] = decorators
		}
		return []*model.Symbol{sym}

	case "import_statement":
		var out []*model.Symbol
		for _, c := range namedChildrenOfKind(n, "dotted_name", "aliased_import") {
			source, alias := pythonImportName(fc, c)
			name := alias
			if name == "" {
				name = rootOf(source)
			}
			sym := fc.NewSymbol(n, name, model.KindImport, nil)
			sym.Signature = collapse(fc.Text(n))
			sym.Metadata["source"] = source
			out = append(out, sym)
		}
		return out

	case "import_from_statement":
		moduleNode := n.ChildByFieldName("module_name")
		source := fc.Text(moduleNode)
		var out []*model.Symbol
		for _, c := range namedChildrenOfKind(n, "dotted_name", "aliased_import") {
			if sameNode(c, moduleNode) {
				continue
			}
			imported, alias := pythonImportName(fc, c)
			name := alias
			if name == "" {
				name = lastSegment(imported)
			}
			sym := fc.NewSymbol(n, name, model.KindImport, nil)
			sym.Signature = collapse(fc.Text(n))
			sym.Metadata["source"] = source
			sym.Metadata["imported"] = imported
			out = append(out, sym)
		}
		return out

	case "assignment":
		// Module-level names and class attributes only; locals are not definitions.
		if parent != nil && parent.Kind != model.KindClass {
			return nil
		}
		if !pythonIsStatementLevel(n) {
			return nil
		}
		left := n.ChildByFieldName("left")
		if left == nil || left.Kind() != "identifier" {
			return nil
		}
		name := fc.Text(left)
		kind := model.KindVariable
		switch {
		case parent != nil:
			kind = model.KindProperty
		case isConstantName(name):
			kind = model.KindConstant
		}
		sym := fc.NewSymbol(n, name, kind, parent)
		sym.Signature = collapse(fc.FirstLine(n))
		sym.Visibility = pythonVisibility(name)
		if typ := fc.FieldText(n, "type"); typ != "" {
			sym.Metadata["type"] = typ
		}
		return []*model.Symbol{sym}
	}
	return nil
}

func (e *pythonExtractor) refs(fc *FileContext, n *sitter.Node) []ref {
	switch n.Kind() {
	case "call":
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return nil
		}
		switch fn.Kind() {
		case "identifier":
			return []ref{{at: n, name: fc.Text(fn), kind: model.RelCalls}}
		case "attribute":
			return []ref{{
				at:        n,
				name:      fc.FieldText(fn, "attribute"),
				qualifier: fc.FieldText(fn, "object"),
				kind:      model.RelCalls,
			}}
		}

	case "class_definition":
		supers := n.ChildByFieldName("superclasses")
		if supers == nil {
			return nil
		}
		var out []ref
		for i := uint(0); i < supers.NamedChildCount(); i++ {
			c := supers.NamedChild(i)
			switch c.Kind() {
			case "identifier":
				out = append(out, ref{at: c, name: fc.Text(c), kind: model.RelExtends})
			case "attribute":
				out = append(out, ref{
					at:        c,
					name:      fc.FieldText(c, "attribute"),
					qualifier: fc.FieldText(c, "object"),
					kind:      model.RelExtends,
				})
			}
		}
		return out
	}
	return nil
}

func (e *pythonExtractor) site(fc *FileContext, n *sitter.Node) (string, model.IdentifierKind, bool) {
	switch n.Kind() {
	case "call":
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return "", "", false
		}
		switch fn.Kind() {
		case "identifier":
			return fc.Text(fn), model.IdentCall, true
		case "attribute":
			return fc.FieldText(fn, "attribute"), model.IdentCall, true
		}

	case "attribute":
		if isCallee(n, "call", "function") || parentKind(n) == "argument_list" && parentKind(n.Parent()) == "class_definition" {
			return "", "", false
		}
		return fc.FieldText(n, "attribute"), model.IdentMemberAccess, true

	case "identifier":
		switch parentKind(n) {
		case "argument_list", "binary_operator", "comparison_operator", "return_statement",
			"subscript", "boolean_operator", "list", "tuple", "expression_list":
			return fc.Text(n), model.IdentVariableRef, true
		}
	}
	return "", "", false
}

// pythonDocstring returns the string literal that opens a class or function body.
func pythonDocstring(fc *FileContext, n *sitter.Node) string {
	body := n.ChildByFieldName("body")
	if body == nil || body.NamedChildCount() == 0 {
		return ""
	}
	first := body.NamedChild(0)
	if first == nil || first.Kind() != "expression_statement" || first.NamedChildCount() == 0 {
		return ""
	}
	str := first.NamedChild(0)
	if str == nil || str.Kind() != "string" {
		return ""
	}
	text := fc.Text(str)
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(text, q) && strings.HasSuffix(text, q) && len(text) >= 2*len(q) {
			text = text[len(q) : len(text)-len(q)]
			break
		}
	}
	return strings.TrimSpace(text)
}

func pythonDecorators(fc *FileContext, n *sitter.Node) string {
	p := n.Parent()
	if p == nil || p.Kind() != "decorated_definition" {
		return ""
	}
	var names []string
	for _, d := range namedChildrenOfKind(p, "decorator") {
		names = append(names, strings.TrimPrefix(collapse(fc.Text(d)), "@"))
	}
	return strings.Join(names, ",")
}

// pythonImportName splits a dotted_name or aliased_import into (name, alias).
func pythonImportName(fc *FileContext, n *sitter.Node) (string, string) {
	if n.Kind() == "aliased_import" {
		return fc.FieldText(n, "name"), fc.FieldText(n, "alias")
	}
	return fc.Text(n), ""
}

// pythonIsStatementLevel reports whether an assignment is a statement of its
// own rather than nested in an expression.
func pythonIsStatementLevel(n *sitter.Node) bool {
	p := n.Parent()
	if p == nil || p.Kind() != "expression_statement" {
		return false
	}
	switch parentKind(p) {
	case "module", "block":
		return true
	}
	return false
}

func pythonVisibility(name string) model.Visibility {
	if strings.HasPrefix(name, "__") && strings.HasSuffix(name, "__") {
		return model.VisibilityPublic
	}
	if strings.HasPrefix(name, "_") {
		return model.VisibilityPrivate
	}
	return model.VisibilityPublic
}

// isConstantName reports whether name follows the ALL_CAPS constant convention.
func isConstantName(name string) bool {
	hasLetter := false
	for _, ch := range name {
		if ch >= 'a' && ch <= 'z' {
			return false
		}
		if ch >= 'A' && ch <= 'Z' {
			hasLetter = true
		}
	}
	return hasLetter
}
