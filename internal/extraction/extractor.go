// Package extraction turns a parsed source file into model records.
//
// Every language implements Extractor. The shared walker in this package drives
// the tree traversal and applies the local-resolution rules; each language only
// supplies its node-kind dispatch (a grammar).
package extraction

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/mvp-joe/symgraph/internal/model"
)

// ErrUnsupportedLanguage is returned when no extractor handles a file.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Extractor is the contract every language plugin implements.
type Extractor interface {
	// Language is the stored language name (go, python, typescript, ...).
	Language() string

	// Grammar is the tree-sitter language used to parse files.
	Grammar() *sitter.Language

	// ExtractSymbols returns the definitions in the file, in source order.
	ExtractSymbols(fc *FileContext, root *sitter.Node) []*model.Symbol

	// ExtractRelationships resolves edges whose target is defined in symbols and
	// returns every other edge as pending.
	ExtractRelationships(fc *FileContext, root *sitter.Node, symbols []*model.Symbol) ([]*model.Relationship, []*model.PendingRelationship)

	// ExtractIdentifiers returns usage sites tagged with their enclosing symbol.
	ExtractIdentifiers(fc *FileContext, root *sitter.Node, symbols []*model.Symbol) []*model.Identifier

	// InferTypes maps symbol ids to a best-effort type string.
	InferTypes(symbols []*model.Symbol) map[string]string
}

// Result is the Pass-1 output for one file.
type Result struct {
	Path          string
	Language      string
	Symbols       []*model.Symbol
	Relationships []*model.Relationship
	Pending       []*model.PendingRelationship
	Identifiers   []*model.Identifier
	Types         map[string]string
	Warnings      []string
}

// Parse runs the full extraction contract over one file. Malformed input still
// yields a result: error nodes are skipped and a warning is recorded.
func Parse(ctx context.Context, ex Extractor, path string, source []byte) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(ex.Grammar())

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s file: %s", ex.Language(), path)
	}
	defer tree.Close()

	root := tree.RootNode()
	fc := NewFileContext(path, ex.Language(), source)

	result := &Result{Path: path, Language: ex.Language()}
	if root.HasError() {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: syntax errors, extracted best-effort", path))
	}

	result.Symbols = ex.ExtractSymbols(fc, root)
	result.Relationships, result.Pending = ex.ExtractRelationships(fc, root, result.Symbols)
	result.Identifiers = ex.ExtractIdentifiers(fc, root, result.Symbols)
	result.Types = ex.InferTypes(result.Symbols)
	return result, nil
}

// ParseFile looks up the extractor for path in the registry and runs Parse.
func ParseFile(ctx context.Context, reg *Registry, path string, source []byte) (*Result, error) {
	ex, ok := reg.ForPath(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, path)
	}
	return Parse(ctx, ex, path, source)
}
