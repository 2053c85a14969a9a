package extraction

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	php "github.com/tree-sitter/tree-sitter-php/bindings/go"

	"github.com/mvp-joe/symgraph/internal/model"
)

// phpExtractor extracts PHP files (the grammar variant that accepts inline HTML).
type phpExtractor struct {
	base
}

func newPHPExtractor() *phpExtractor {
	e := &phpExtractor{}
	e.base = newBase("php", sitter.NewLanguage(php.LanguagePHP()), e)
	return e
}

func (e *phpExtractor) declare(fc *FileContext, n *sitter.Node, parent *model.Symbol) []*model.Symbol {
	switch n.Kind() {
	case "namespace_definition":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindNamespace, nil)
		sym.Signature = "namespace " + name
		return []*model.Symbol{sym}

	case "namespace_use_clause":
		var target, alias string
		for i := uint(0); i < n.NamedChildCount(); i++ {
			c := n.NamedChild(i)
			switch c.Kind() {
			case "qualified_name", "name":
				if target == "" {
					target = fc.Text(c)
				} else {
					alias = fc.Text(c)
				}
			case "namespace_aliasing_clause":
				alias = fc.Text(firstNamedOfKind(c, "name"))
			}
		}
		if a := fc.FieldText(n, "alias"); a != "" {
			alias = a
		}
		target = strings.TrimPrefix(target, "\\")
		if target == "" {
			return nil
		}
		name := alias
		if name == "" {
			name = lastSegment(target)
		}
		sym := fc.NewSymbol(n, name, model.KindImport, nil)
		sym.Signature = "use " + collapse(fc.Text(n))
		sym.Metadata["source"] = trimSegment(target)
		sym.Metadata["imported"] = lastSegment(target)
		return []*model.Symbol{sym}

	case "class_declaration", "interface_declaration", "trait_declaration", "enum_declaration":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		kind := model.KindClass
		switch n.Kind() {
		case "interface_declaration":
			kind = model.KindInterface
		case "enum_declaration":
			kind = model.KindEnum
		case "trait_declaration":
			kind = model.KindClass
		}
		sym := fc.NewSymbol(n, name, kind, parent)
		sym.Signature = fc.Header(n)
		sym.DocComment = fc.DocComment(n)
		if n.Kind() == "trait_declaration" {
			sym.Metadata["trait"] = "true"
		}
		return []*model.Symbol{sym}

	case "method_declaration":
		name := fc.FieldText(n, "name")
		if name == "" || parent == nil {
			return nil
		}
		kind := model.KindMethod
		if strings.EqualFold(name, "__construct") {
			kind = model.KindConstructor
		}
		sym := fc.NewSymbol(n, name, kind, parent)
		phpDescribe(fc, n, sym)
		return []*model.Symbol{sym}

	case "function_definition":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindFunction, parent)
		phpDescribe(fc, n, sym)
		return []*model.Symbol{sym}

	case "property_declaration":
		if parent == nil {
			return nil
		}
		var out []*model.Symbol
		for _, el := range namedChildrenOfKind(n, "property_element") {
			name := strings.TrimPrefix(fc.Text(firstNamedOfKind(el, "variable_name")), "$")
			if name == "" {
				continue
			}
			sym := fc.NewSymbol(el, name, model.KindProperty, parent)
			sym.Signature = collapse(strings.TrimSuffix(fc.Text(n), ";"))
			sym.DocComment = fc.DocComment(n)
			sym.Visibility = phpVisibility(fc, n)
			if typ := fc.FieldText(n, "type"); typ != "" {
				sym.Metadata["type"] = typ
			}
			out = append(out, sym)
		}
		return out

	case "const_declaration":
		var out []*model.Symbol
		for _, el := range namedChildrenOfKind(n, "const_element") {
			name := fc.Text(firstNamedOfKind(el, "name"))
			if name == "" {
				continue
			}
			sym := fc.NewSymbol(el, name, model.KindConstant, parent)
			sym.Signature = collapse(strings.TrimSuffix(fc.Text(n), ";"))
			sym.Visibility = phpVisibility(fc, n)
			out = append(out, sym)
		}
		return out

	case "enum_case":
		if parent == nil || parent.Kind != model.KindEnum {
			return nil
		}
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindEnumMember, parent)
		sym.Signature = collapse(strings.TrimSuffix(fc.Text(n), ";"))
		return []*model.Symbol{sym}
	}
	return nil
}

func phpDescribe(fc *FileContext, n *sitter.Node, sym *model.Symbol) {
	sym.Signature = fc.Header(n)
	sym.DocComment = fc.DocComment(n)
	sym.Visibility = phpVisibility(fc, n)
	if ret := fc.FieldText(n, "return_type"); ret != "" {
		sym.Metadata["returns"] = collapse(ret)
	}
	if firstNamedOfKind(n, "static_modifier") != nil {
		sym.Metadata["static"] = "true"
	}
}

func (e *phpExtractor) refs(fc *FileContext, n *sitter.Node) []ref {
	switch n.Kind() {
	case "function_call_expression":
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return nil
		}
		switch fn.Kind() {
		case "name":
			return []ref{{at: n, name: fc.Text(fn), kind: model.RelCalls}}
		case "qualified_name":
			text := strings.TrimPrefix(fc.Text(fn), "\\")
			return []ref{{at: n, name: lastSegment(text), qualifier: trimSegment(text), kind: model.RelCalls}}
		}

	case "member_call_expression", "nullsafe_member_call_expression":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		return []ref{{at: n, name: name, qualifier: fc.FieldText(n, "object"), kind: model.RelCalls}}

	case "scoped_call_expression":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		return []ref{{at: n, name: name, qualifier: phpClassName(fc.FieldText(n, "scope")), kind: model.RelCalls}}

	case "object_creation_expression":
		for i := uint(0); i < n.NamedChildCount(); i++ {
			c := n.NamedChild(i)
			if c.Kind() == "name" || c.Kind() == "qualified_name" {
				return []ref{{at: n, name: phpClassName(fc.Text(c)), kind: model.RelCalls}}
			}
		}

	case "base_clause", "class_interface_clause":
		kind := model.RelExtends
		if n.Kind() == "class_interface_clause" {
			kind = model.RelImplements
		}
		var out []ref
		for _, c := range namedChildrenOfKind(n, "name", "qualified_name") {
			out = append(out, ref{at: c, name: phpClassName(fc.Text(c)), kind: kind})
		}
		return out

	case "use_declaration":
		// use SomeTrait; inside a class body.
		var out []ref
		for _, c := range namedChildrenOfKind(n, "name", "qualified_name") {
			out = append(out, ref{at: c, name: phpClassName(fc.Text(c)), kind: model.RelUses})
		}
		return out
	}
	return nil
}

func (e *phpExtractor) site(fc *FileContext, n *sitter.Node) (string, model.IdentifierKind, bool) {
	switch n.Kind() {
	case "function_call_expression", "member_call_expression", "nullsafe_member_call_expression",
		"scoped_call_expression", "object_creation_expression":
		if refs := e.refs(fc, n); len(refs) == 1 {
			return refs[0].name, model.IdentCall, true
		}
	case "member_access_expression", "nullsafe_member_access_expression":
		return fc.FieldText(n, "name"), model.IdentMemberAccess, true
	case "variable_name":
		switch parentKind(n) {
		case "argument", "binary_expression", "unary_op_expression", "return_statement",
			"subscript_expression", "array_element_initializer", "echo_statement":
			return strings.TrimPrefix(fc.Text(n), "$"), model.IdentVariableRef, true
		}
	}
	return "", "", false
}

// phpClassName strips the namespace from a class reference.
func phpClassName(text string) string {
	return lastSegment(strings.TrimPrefix(strings.TrimSpace(text), "\\"))
}

func phpVisibility(fc *FileContext, n *sitter.Node) model.Visibility {
	if mod := firstNamedOfKind(n, "visibility_modifier"); mod != nil {
		switch strings.ToLower(fc.Text(mod)) {
		case "private":
			return model.VisibilityPrivate
		case "protected":
			return model.VisibilityProtected
		}
	}
	return model.VisibilityPublic
}
