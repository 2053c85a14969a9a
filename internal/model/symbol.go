// Package model defines the records shared by extraction, resolution and storage:
// symbols, relationships, pending relationships, identifiers and file records.
//
// Field names and JSON tags are the wire format between the extraction layer and
// the store. Changes must be additive (see SchemaVersion).
package model

import (
	"fmt"
	"strings"
)

// SymbolKind is the closed taxonomy of definition kinds.
type SymbolKind string

const (
	KindFunction    SymbolKind = "function"
	KindMethod      SymbolKind = "method"
	KindClass       SymbolKind = "class"
	KindStruct      SymbolKind = "struct"
	KindInterface   SymbolKind = "interface"
	KindEnum        SymbolKind = "enum"
	KindEnumMember  SymbolKind = "enum_member"
	KindField       SymbolKind = "field"
	KindProperty    SymbolKind = "property"
	KindVariable    SymbolKind = "variable"
	KindConstant    SymbolKind = "constant"
	KindNamespace   SymbolKind = "namespace"
	KindModule      SymbolKind = "module"
	KindImport      SymbolKind = "import"
	KindExport      SymbolKind = "export"
	KindType        SymbolKind = "type"
	KindUnion       SymbolKind = "union"
	KindDelegate    SymbolKind = "delegate"
	KindOperator    SymbolKind = "operator"
	KindConstructor SymbolKind = "constructor"
	KindEvent       SymbolKind = "event"
)

var symbolKinds = map[SymbolKind]bool{
	KindFunction: true, KindMethod: true, KindClass: true, KindStruct: true,
	KindInterface: true, KindEnum: true, KindEnumMember: true, KindField: true,
	KindProperty: true, KindVariable: true, KindConstant: true, KindNamespace: true,
	KindModule: true, KindImport: true, KindExport: true, KindType: true,
	KindUnion: true, KindDelegate: true, KindOperator: true, KindConstructor: true,
	KindEvent: true,
}

// Valid reports whether k belongs to the taxonomy.
func (k SymbolKind) Valid() bool {
	return symbolKinds[k]
}

// IsCallable reports whether a symbol of this kind can be the target of a call.
func (k SymbolKind) IsCallable() bool {
	switch k {
	case KindFunction, KindMethod, KindConstructor, KindOperator, KindDelegate:
		return true
	}
	return false
}

// IsType reports whether a symbol of this kind can be extended or implemented.
func (k SymbolKind) IsType() bool {
	switch k {
	case KindClass, KindStruct, KindInterface, KindEnum, KindType, KindUnion:
		return true
	}
	return false
}

// IsBinding reports whether the kind is an import/export binding rather than a definition.
func (k SymbolKind) IsBinding() bool {
	return k == KindImport || k == KindExport
}

// ParseSymbolKind converts a stored kind string, rejecting values outside the taxonomy.
func ParseSymbolKind(s string) (SymbolKind, error) {
	k := SymbolKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown symbol kind %q", s)
	}
	return k, nil
}

// Visibility of a symbol. Languages without the concept use VisibilityPublic.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityPrivate   Visibility = "private"
	VisibilityProtected Visibility = "protected"
)

// Symbol is a named, located definition.
type Symbol struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Kind        SymbolKind        `json:"kind"`
	Language    string            `json:"language"`
	FilePath    string            `json:"file_path"`
	StartLine   int               `json:"start_line"`
	StartColumn int               `json:"start_column"`
	EndLine     int               `json:"end_line"`
	EndColumn   int               `json:"end_column"`
	StartByte   int               `json:"start_byte"`
	EndByte     int               `json:"end_byte"`
	Signature   string            `json:"signature,omitempty"`
	DocComment  string            `json:"doc_comment,omitempty"`
	Visibility  Visibility        `json:"visibility"`
	ParentID    string            `json:"parent_id,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`

	// Populated by search-time ranking only.
	SemanticGroup string   `json:"semantic_group,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	CodeContext   string   `json:"code_context,omitempty"`
}

// EmbeddingText is the text a symbol is embedded from: signature and doc comment.
// Empty means the symbol has no embeddable content.
func (s *Symbol) EmbeddingText() string {
	var parts []string
	if sig := strings.TrimSpace(s.Signature); sig != "" {
		parts = append(parts, sig)
	}
	if doc := strings.TrimSpace(s.DocComment); doc != "" {
		parts = append(parts, doc)
	}
	return strings.Join(parts, "\n")
}

// Embeddable reports whether the symbol gets a vector: it has embeddable text
// and is a definition rather than an import or export binding.
func (s *Symbol) Embeddable() bool {
	return !s.Kind.IsBinding() && s.EmbeddingText() != ""
}

// Contains reports whether the byte offset lies within the symbol's span.
func (s *Symbol) Contains(offset int) bool {
	return offset >= s.StartByte && offset < s.EndByte
}

// TypeInfo is the best-effort type of a symbol derived from its signature.
type TypeInfo struct {
	SymbolID     string `json:"symbol_id"`
	ResolvedType string `json:"resolved_type"`
	Language     string `json:"language"`
	IsInferred   bool   `json:"is_inferred"`
}
