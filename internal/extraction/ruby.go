package extraction

import (
	"path"
	"strings"

	sitter "github.com/tree-sitter/go-tree-sitter"
	ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"

	"github.com/mvp-joe/symgraph/internal/model"
)

// rubyExtractor extracts Ruby files. require and require_relative become
// imports; include and extend become implements edges from the enclosing class.
type rubyExtractor struct {
	base
}

func newRubyExtractor() *rubyExtractor {
	e := &rubyExtractor{}
	e.base = newBase("ruby", sitter.NewLanguage(ruby.Language()), e)
	return e
}

// rubyKeywordCalls are method calls that read like declarations.
var rubyKeywordCalls = map[string]bool{
	"require": true, "require_relative": true, "include": true, "extend": true, "prepend": true,
	"attr_reader": true, "attr_writer": true, "attr_accessor": true,
	"private": true, "protected": true, "public": true, "module_function": true,
}

func (e *rubyExtractor) declare(fc *FileContext, n *sitter.Node, parent *model.Symbol) []*model.Symbol {
	switch n.Kind() {
	case "class", "module":
		name := lastSegment(fc.FieldText(n, "name"))
		if name == "" {
			return nil
		}
		kind := model.KindClass
		if n.Kind() == "module" {
			kind = model.KindModule
		}
		sym := fc.NewSymbol(n, name, kind, parent)
		sym.Signature = collapse(fc.FirstLine(n))
		sym.DocComment = fc.DocComment(n)
		return []*model.Symbol{sym}

	case "method", "singleton_method":
		name := fc.FieldText(n, "name")
		if name == "" {
			return nil
		}
		kind := model.KindFunction
		if parent != nil && (parent.Kind == model.KindClass || parent.Kind == model.KindModule) {
			kind = model.KindMethod
			if name == "initialize" {
				kind = model.KindConstructor
			}
		}
		sym := fc.NewSymbol(n, name, kind, parent)
		sym.Signature = collapse(fc.FirstLine(n))
		sym.DocComment = fc.DocComment(n)
		if n.Kind() == "singleton_method" {
			sym.Metadata["static"] = "true"
		}
		if strings.HasPrefix(name, "_") {
			sym.Visibility = model.VisibilityPrivate
		}
		return []*model.Symbol{sym}

	case "assignment":
		left := n.ChildByFieldName("left")
		if left == nil || left.Kind() != "constant" {
			return nil
		}
		if parent != nil && parent.Kind.IsCallable() {
			return nil
		}
		sym := fc.NewSymbol(n, fc.Text(left), model.KindConstant, parent)
		sym.Signature = collapse(fc.FirstLine(n))
		sym.DocComment = fc.DocComment(n)
		return []*model.Symbol{sym}

	case "call":
		method := fc.FieldText(n, "method")
		switch method {
		case "require", "require_relative":
			source := rubyStringArg(fc, n)
			if source == "" {
				return nil
			}
			file := path.Base(source)
			sym := fc.NewSymbol(n, strings.TrimSuffix(file, path.Ext(file)), model.KindImport, nil)
			sym.Signature = collapse(fc.Text(n))
			if method == "require_relative" && !strings.HasPrefix(source, ".") {
				source = "./" + source
			}
			sym.Metadata["source"] = source
			return []*model.Symbol{sym}

		case "attr_reader", "attr_writer", "attr_accessor":
			if parent == nil || parent.Kind != model.KindClass {
				return nil
			}
			args := n.ChildByFieldName("arguments")
			var out []*model.Symbol
			for _, s := range namedChildrenOfKind(args, "simple_symbol") {
				name := strings.TrimPrefix(fc.Text(s), ":")
				sym := fc.NewSymbol(s, name, model.KindProperty, parent)
				sym.Signature = collapse(fc.Text(n))
				sym.Metadata["accessor"] = method
				out = append(out, sym)
			}
			return out
		}
	}
	return nil
}

func (e *rubyExtractor) refs(fc *FileContext, n *sitter.Node) []ref {
	switch n.Kind() {
	case "class":
		sc := n.ChildByFieldName("superclass")
		if sc == nil || sc.NamedChildCount() == 0 {
			return nil
		}
		c := sc.NamedChild(0)
		return []ref{{at: c, name: lastSegment(fc.Text(c)), kind: model.RelExtends}}

	case "call":
		method := fc.FieldText(n, "method")
		if method == "" {
			return nil
		}
		switch method {
		case "include", "extend", "prepend":
			var out []ref
			for _, c := range namedChildrenOfKind(n.ChildByFieldName("arguments"), "constant", "scope_resolution") {
				out = append(out, ref{at: c, name: lastSegment(fc.Text(c)), kind: model.RelImplements})
			}
			return out
		}
		if rubyKeywordCalls[method] {
			return nil
		}
		receiver := n.ChildByFieldName("receiver")
		// Foo.new constructs Foo.
		if method == "new" && receiver != nil && (receiver.Kind() == "constant" || receiver.Kind() == "scope_resolution") {
			return []ref{{at: n, name: lastSegment(fc.Text(receiver)), kind: model.RelCalls}}
		}
		return []ref{{at: n, name: method, qualifier: fc.Text(receiver), kind: model.RelCalls}}
	}
	return nil
}

func (e *rubyExtractor) site(fc *FileContext, n *sitter.Node) (string, model.IdentifierKind, bool) {
	switch n.Kind() {
	case "call":
		method := fc.FieldText(n, "method")
		if method == "" || rubyKeywordCalls[method] {
			return "", "", false
		}
		if receiver := n.ChildByFieldName("receiver"); receiver != nil && n.ChildByFieldName("arguments") == nil && receiver.Kind() != "constant" {
			return method, model.IdentMemberAccess, true
		}
		return method, model.IdentCall, true
	case "identifier":
		switch parentKind(n) {
		case "argument_list", "binary", "unary", "return", "element_reference", "array", "interpolation":
			return fc.Text(n), model.IdentVariableRef, true
		}
	}
	return "", "", false
}

// rubyStringArg returns the literal content of a call's first string argument.
func rubyStringArg(fc *FileContext, n *sitter.Node) string {
	args := n.ChildByFieldName("arguments")
	str := firstNamedOfKind(args, "string")
	if str == nil {
		return ""
	}
	return fc.Text(firstNamedOfKind(str, "string_content"))
}
