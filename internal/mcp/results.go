package mcp

import "github.com/mvp-joe/symgraph/internal/model"

// SymbolResult is a symbol as the tools report it.
type SymbolResult struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Kind       model.SymbolKind `json:"kind"`
	Language   string           `json:"language"`
	FilePath   string           `json:"file_path"`
	StartLine  int              `json:"start_line"`
	EndLine    int              `json:"end_line"`
	Signature  string           `json:"signature,omitempty"`
	DocComment string           `json:"doc_comment,omitempty"`
	ParentID   string           `json:"parent_id,omitempty"`
	Score      float64          `json:"score,omitempty"`
	Highlights []string         `json:"highlights,omitempty"`
}

func symbolResult(s *model.Symbol) SymbolResult {
	return SymbolResult{
		ID:         s.ID,
		Name:       s.Name,
		Kind:       s.Kind,
		Language:   s.Language,
		FilePath:   s.FilePath,
		StartLine:  s.StartLine,
		EndLine:    s.EndLine,
		Signature:  s.Signature,
		DocComment: s.DocComment,
		ParentID:   s.ParentID,
	}
}
