package extraction

import (
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"

	"github.com/mvp-joe/symgraph/internal/model"
)

// javaExtractor extracts Java files.
type javaExtractor struct {
	base
}

func newJavaExtractor() *javaExtractor {
	e := &javaExtractor{}
	e.base = newBase("java", sitter.NewLanguage(java.Language()), e)
	return e
}

var javaComments = []string{"block_comment", "line_comment"}

func (e *javaExtractor) declare(fc *FileContext, n *sitter.Node, parent *model.Symbol) []*model.Symbol {
	switch n.Kind() {
	case "package_declaration":
		name := ""
		if c := firstNamedOfKind(n, "scoped_identifier"); c != nil {
			name = fc.Text(c)
		} else if c := firstNamedOfKind(n, "identifier"); c != nil {
			name = fc.Text(c)
		}
		if name == "" {
			return nil
		}
		sym := fc.NewSymbol(n, name, model.KindNamespace, nil)
		sym.Signature = collapse(fc.Text(n))
		return []*model.Symbol{sym}

	case "import_declaration":
		text := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(collapse(fc.Text(n)), "import")), ";")
		text = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "static"))
		if strings.HasSuffix(text, ".*") {
			return nil
		}
		sym := fc.NewSymbol(n, lastSegment(text), model.KindImport, nil)
		sym.Signature = collapse(fc.Text(n))
		sym.Metadata["source"] = trimSegment(text)
		return []*model.Symbol{sym}

	case "class_declaration", "interface_declaration", "enum_declaration", "record_declaration", "annotation_type_declaration":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		kind := model.KindClass
		switch n.Kind() {
		case "interface_declaration", "annotation_type_declaration":
			kind = model.KindInterface
		case "enum_declaration":
			kind = model.KindEnum
		}
		sym := fc.NewSymbol(n, name, kind, parent)
		sym.Signature = fc.Header(n)
		sym.DocComment = fc.DocComment(n, javaComments...)
		sym.Visibility = javaVisibility(fc, n)
		return []*model.Symbol{sym}

	case "method_declaration", "constructor_declaration":
		name := fc.FieldText(n, "name")
		if name == "" || parent == nil {
			return nil
		}
		kind := model.KindMethod
		if n.Kind() == "constructor_declaration" {
			kind = model.KindConstructor
		}
		sym := fc.NewSymbol(n, name, kind, parent)
		sym.Signature = fc.Header(n)
		sym.DocComment = fc.DocComment(n, javaComments...)
		sym.Visibility = javaVisibility(fc, n)
		if ret := fc.FieldText(n, "type"); ret != "" {
			sym.Metadata["returns"] = collapse(ret)
		}
		return []*model.Symbol{sym}

	case "field_declaration", "constant_declaration":
		if parent == nil || parent.Kind.IsCallable() {
			return nil
		}
		typ := collapse(fc.FieldText(n, "type"))
		kind := model.KindField
		mods := javaModifiers(fc, n)
		if parent.Kind == model.KindInterface || (strings.Contains(mods, "static") && strings.Contains(mods, "final")) {
			kind = model.KindConstant
		}
		var out []*model.Symbol
		for _, d := range namedChildrenOfKind(n, "variable_declarator") {
			name := fc.FieldText(d, "name")
			if name == "" {
				continue
			}
			sym := fc.NewSymbol(n, name, kind, parent)
			sym.Signature = collapse(strings.TrimSuffix(fc.Text(n), ";"))
			sym.DocComment = fc.DocComment(n, javaComments...)
			sym.Visibility = javaVisibility(fc, n)
			sym.Metadata["type"] = typ
			out = append(out, sym)
		}
		return out

	case "enum_constant":
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
	}
	return nil
}

func (e *javaExtractor) refs(fc *FileContext, n *sitter.Node) []ref {
	switch n.Kind() {
	case "method_invocation":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		return []ref{{at: n, name: name, qualifier: fc.FieldText(n, "object"), kind: model.RelCalls}}

	case "object_creation_expression":
		if name := javaTypeName(fc, n.ChildByFieldName("type")); name != "" {
			return []ref{{at: n, name: name, kind: model.RelCalls}}
		}

	case "superclass":
		var out []ref
		for i := uint(0); i < n.NamedChildCount(); i++ {
			c := n.NamedChild(i)
			if name := javaTypeName(fc, c); name != "" {
				out = append(out, ref{at: c, name: name, kind: model.RelExtends})
			}
		}
		return out

	case "super_interfaces", "extends_interfaces":
		kind := model.RelImplements
		if n.Kind() == "extends_interfaces" {
			kind = model.RelExtends
		}
		var out []ref
		for _, list := range namedChildrenOfKind(n, "type_list") {
			for i := uint(0); i < list.NamedChildCount(); i++ {
				c := list.NamedChild(i)
				if name := javaTypeName(fc, c); name != "" {
					out = append(out, ref{at: c, name: name, kind: kind})
				}
			}
		}
		return out
	}
	return nil
}

func (e *javaExtractor) site(fc *FileContext, n *sitter.Node) (string, model.IdentifierKind, bool) {
	switch n.Kind() {
	case "method_invocation":
		return fc.FieldText(n, "name"), model.IdentCall, true
	case "object_creation_expression":
		return javaTypeName(fc, n.ChildByFieldName("type")), model.IdentCall, true
	case "field_access":
		return fc.FieldText(n, "field"), model.IdentMemberAccess, true
	case "identifier":
		switch parentKind(n) {
		case "argument_list", "binary_expression", "unary_expression", "return_statement",
			"array_access", "array_initializer", "update_expression":
			return fc.Text(n), model.IdentVariableRef, true
		}
	}
	return "", "", false
}

func javaTypeName(fc *FileContext, n *sitter.Node) string {
	if n == nil {
		return ""
	}
	switch n.Kind() {
	case "generic_type":
		if c := n.NamedChild(0); c != nil {
			return javaTypeName(fc, c)
		}
		return ""
	case "scoped_type_identifier":
		return lastSegment(fc.Text(n))
	}
	return fc.Text(n)
}

func javaModifiers(fc *FileContext, n *sitter.Node) string {
	if mods := firstNamedOfKind(n, "modifiers"); mods != nil {
		return collapse(fc.Text(mods))
	}
	return ""
}

func javaVisibility(fc *FileContext, n *sitter.Node) model.Visibility {
	mods := " " + javaModifiers(fc, n) + " "
	switch {
	case strings.Contains(mods, " private "):
		return model.VisibilityPrivate
	case strings.Contains(mods, " protected "):
		return model.VisibilityProtected
	}
	return model.VisibilityPublic
}
