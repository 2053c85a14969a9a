package extraction

import (
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/tree-sitter/go-tree-sitter"
	golang "github.com/tree-sitter/tree-sitter-go/bindings/go"

	"github.com/mvp-joe/symgraph/internal/model"
)

// goExtractor extracts Go files.
type goExtractor struct {
	base
}

func newGoExtractor() *goExtractor {
	e := &goExtractor{}
	e.base = newBase("go", sitter.NewLanguage(golang.Language()), e)
	return e
}

func (e *goExtractor) declare(fc *FileContext, n *sitter.Node, parent *model.Symbol) []*model.Symbol {
	switch n.Kind() {
	case "package_clause":
		name := fc.Text(firstNamedOfKind(n, "package_identifier"))
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindNamespace, nil)
		sym.Signature = "package " + name
		return []*model.Symbol{sym}

	case "import_spec":
		source := unquote(fc.FieldText(n, "path"))
		name := fc.FieldText(n, "name")
		switch name {
		case "_":
			return nil
		case "", ".":
			name = lastSegment(source)
		}
		sym := fc.NewSymbol(n, name, model.KindImport, nil)
		sym.Signature = "import " + collapse(fc.Text(n))
		sym.Metadata["source"] = source
		return []*model.Symbol{sym}

	case "function_declaration":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindFunction, nil)
		e.describeFunc(fc, n, sym)
		return []*model.Symbol{sym}

	case "method_declaration":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		recv := goReceiverType(fc, n)
		sym := fc.NewSymbolInScope(n, name, model.KindMethod, recv)
		e.describeFunc(fc, n, sym)
		if recv != "" {
			sym.Metadata["receiver"] = recv
		}
		return []*model.Symbol{sym}

	case "type_spec", "type_alias":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		typeNode := n.ChildByFieldName("type")
		kind := model.KindType
		sig := "type " + name + " " + collapse(fc.Text(typeNode))
		switch {
		case typeNode != nil && typeNode.Kind() == "struct_type":
			kind = model.KindStruct
			sig = "type " + name + " struct"
		case typeNode != nil && typeNode.Kind() == "interface_type":
			kind = model.KindInterface
			sig = "type " + name + " interface"
		}
		sym := fc.NewSymbol(n, name, kind, parent)
		sym.Signature = sig
		sym.Visibility = goVisibility(name)
		if kind == model.KindType {
			sym.Metadata["type"] = collapse(fc.Text(typeNode))
		}
		sym.DocComment = fc.DocComment(n)
		if sym.DocComment == "" && n.Parent() != nil && n.Parent().Kind() == "type_declaration" {
			sym.DocComment = fc.DocComment(n.Parent())
		}
		return []*model.Symbol{sym}

	case "field_declaration":
		if parent == nil || parent.Kind != model.KindStruct {
			return nil
		}
		typ := collapse(fc.FieldText(n, "type"))
		var out []*model.Symbol
		for _, nameNode := range namedChildrenOfKind(n, "field_identifier") {
			name := fc.Text(nameNode)
			sym := fc.NewSymbol(n, name, model.KindField, parent)
			sym.Signature = name + " " + typ
			sym.Visibility = goVisibility(name)
			sym.Metadata["type"] = typ
			sym.DocComment = fc.DocComment(n)
			out = append(out, sym)
		}
		if len(out) == 0 && typ != "" {
			// Embedded field: named after its type.
			name := strings.TrimPrefix(lastSegment(typ), "*")
			sym := fc.NewSymbol(n, name, model.KindField, parent)
			sym.Signature = typ
			sym.Visibility = goVisibility(name)
			sym.Metadata["type"] = typ
			sym.Metadata["embedded"] = "true"
			out = append(out, sym)
		}
		return out

	case "method_elem", "method_spec":
		if parent == nil || parent.Kind != model.KindInterface {
			return nil
		}
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindMethod, parent)
		sym.Signature = collapse(fc.Text(n))
		sym.Visibility = goVisibility(name)
		sym.Metadata["returns"] = collapse(fc.FieldText(n, "result"))
		sym.DocComment = fc.DocComment(n)
		return []*model.Symbol{sym}

	case "const_spec", "var_spec":
		if parent != nil && parent.Kind != model.KindNamespace {
			return nil
		}
		kind := model.KindVariable
		keyword := "var"
		if n.Kind() == "const_spec" {
			kind = model.KindConstant
			keyword = "const"
		}
		typ := collapse(fc.FieldText(n, "type"))
		var out []*model.Symbol
		for _, nameNode := range namedChildrenOfKind(n, "identifier") {
			name := fc.Text(nameNode)
			if name == "_" {
				continue
			}
			sym := fc.NewSymbol(n, name, kind, nil)
			sym.Signature = keyword + " " + collapse(fc.Text(n))
			sym.Visibility = goVisibility(name)
			if typ != "" {
				sym.Metadata["type"] = typ
			}
			sym.DocComment = fc.DocComment(n)
			if sym.DocComment == "" && n.Parent() != nil {
				sym.DocComment = fc.DocComment(n.Parent())
			}
			out = append(out, sym)
		}
		return out
	}
	return nil
}

func (e *goExtractor) describeFunc(fc *FileContext, n *sitter.Node, sym *model.Symbol) {
	sym.Signature = fc.Header(n)
	sym.DocComment = fc.DocComment(n)
	sym.Visibility = goVisibility(sym.Name)
	if result := collapse(fc.FieldText(n, "result")); result != "" {
		sym.Metadata["returns"] = result
	}
}

func (e *goExtractor) refs(fc *FileContext, n *sitter.Node) []ref {
	switch n.Kind() {
	case "call_expression":
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return nil
		}
		switch fn.Kind() {
		case "identifier":
			return []ref{{at: n, name: fc.Text(fn), kind: model.RelCalls}}
		case "selector_expression":
			return []ref{{
				at:        n,
				name:      fc.FieldText(fn, "field"),
				qualifier: fc.FieldText(fn, "operand"),
				kind:      model.RelCalls,
			}}
		}

	case "method_declaration":
		if recv := goReceiverType(fc, n); recv != "" {
			return []ref{{at: n.ChildByFieldName("receiver"), name: recv, kind: model.RelUses}}
		}
	}
	return nil
}

func (e *goExtractor) site(fc *FileContext, n *sitter.Node) (string, model.IdentifierKind, bool) {
	switch n.Kind() {
	case "call_expression":
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return "", "", false
		}
		switch fn.Kind() {
		case "identifier":
			return fc.Text(fn), model.IdentCall, true
		case "selector_expression":
			return fc.FieldText(fn, "field"), model.IdentCall, true
		}

	case "selector_expression":
		if isCallee(n, "call_expression", "function") {
			return "", "", false
		}
		return fc.FieldText(n, "field"), model.IdentMemberAccess, true

	case "identifier":
		switch parentKind(n) {
		case "argument_list", "binary_expression", "unary_expression", "expression_list",
			"return_statement", "index_expression", "keyed_element", "inc_statement", "dec_statement":
			return fc.Text(n), model.IdentVariableRef, true
		}
	}
	return "", "", false
}

// link attaches methods to receiver types declared in the same file.
func (e *goExtractor) link(symbols []*model.Symbol) {
	types := make(map[string]*model.Symbol)
	for _, s := range symbols {
		if s.Kind.IsType() {
			if _, dup := types[s.Name]; !dup {
				types[s.Name] = s
			}
		}
	}
	for _, s := range symbols {
		if s.Kind != model.KindMethod || s.ParentID != "" {
			continue
		}
		if t, ok := types[s.Metadata["receiver"]]; ok {
			s.ParentID = t.ID
		}
	}
}

// goReceiverType returns the bare receiver type name of a method declaration.
func goReceiverType(fc *FileContext, n *sitter.Node) string {
	recv := n.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	param := firstNamedOfKind(recv, "parameter_declaration")
	if param == nil {
		return ""
	}
	typ := fc.FieldText(param, "type")
	typ = strings.TrimLeft(typ, "*")
	if i := strings.IndexByte(typ, '['); i >= 0 {
		typ = typ[:i]
	}
	return strings.TrimSpace(typ)
}

func goVisibility(name string) model.Visibility {
	r, _ := utf8.DecodeRuneInString(name)
	if unicode.IsUpper(r) {
		return model.VisibilityPublic
	}
	return model.VisibilityPrivate
}

// firstNamedOfKind returns the first named child of n with the given kind.
func firstNamedOfKind(n *sitter.Node, kind string) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		if c := n.NamedChild(i); c != nil && c.Kind() == kind {
			return c
		}
	}
	return nil
}

// namedChildrenOfKind returns every named child of n with one of the given kinds.
func namedChildrenOfKind(n *sitter.Node, kinds ...string) []*sitter.Node {
	var out []*sitter.Node
	if n == nil {
		return out
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if c == nil {
			continue
		}
		for _, k := range kinds {
			if c.Kind() == k {
				out = append(out, c)
				break
			}
		}
	}
	return out
}

func parentKind(n *sitter.Node) string {
	if p := n.Parent(); p != nil {
		return p.Kind()
	}
	return ""
}

// isCallee reports whether n is the field child of a parent of parentKind,
// e.g. the function position of a call expression.
func isCallee(n *sitter.Node, parentKind, field string) bool {
	p := n.Parent()
	if p == nil || p.Kind() != parentKind {
		return false
	}
	return sameNode(p.ChildByFieldName(field), n)
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Kind() == b.Kind()
}
