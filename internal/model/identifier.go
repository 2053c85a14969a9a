package model

// IdentifierKind classifies a usage site.
type IdentifierKind string

const (
	IdentCall         IdentifierKind = "call"
	IdentMemberAccess IdentifierKind = "member_access"
	IdentVariableRef  IdentifierKind = "variable_ref"
)

// Valid reports whether k is a known identifier kind.
func (k IdentifierKind) Valid() bool {
	switch k {
	case IdentCall, IdentMemberAccess, IdentVariableRef:
		return true
	}
	return false
}

// Identifier is a usage-site reference, as opposed to a Symbol definition.
type Identifier struct {
	ID                 string         `json:"id"`
	Name               string         `json:"name"`
	Kind               IdentifierKind `json:"kind"`
	Language           string         `json:"language"`
	FilePath           string         `json:"file_path"`
	StartLine          int            `json:"start_line"`
	StartColumn        int            `json:"start_column"`
	EndLine            int            `json:"end_line"`
	EndColumn          int            `json:"end_column"`
	StartByte          int            `json:"start_byte"`
	EndByte            int            `json:"end_byte"`
	ContainingSymbolID string         `json:"containing_symbol_id,omitempty"`
	TargetSymbolID     string         `json:"target_symbol_id,omitempty"`
	Confidence         float64        `json:"confidence"`
	CodeContext        string         `json:"code_context,omitempty"`
}

// File is the stored record of one source file.
type File struct {
	Path         string `json:"path"`
	Language     string `json:"language"`
	Hash         string `json:"hash"`
	Size         int64  `json:"size"`
	LastModified int64  `json:"last_modified"`
	Content      string `json:"content,omitempty"`
	SymbolCount  int    `json:"symbol_count"`
}
