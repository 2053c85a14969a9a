package model

import (
	"fmt"
	"strings"
)

// RelationshipKind is the closed set of edge kinds.
type RelationshipKind string

const (
	RelCalls      RelationshipKind = "calls"
	RelExtends    RelationshipKind = "extends"
	RelImplements RelationshipKind = "implements"
	RelUses       RelationshipKind = "uses"
)

// Valid reports whether k is a known relationship kind.
func (k RelationshipKind) Valid() bool {
	switch k {
	case RelCalls, RelExtends, RelImplements, RelUses:
		return true
	}
	return false
}

// ParseRelationshipKind converts a stored kind string.
func ParseRelationshipKind(s string) (RelationshipKind, error) {
	k := RelationshipKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown relationship kind %q", s)
	}
	return k, nil
}

// Confidence levels assigned during extraction.
const (
	ConfidenceLocal    = 0.9 // target defined in the same file
	ConfidenceImported = 0.8 // target is an import binding, needs cross-file lookup
	ConfidenceUnknown  = 0.7 // target name not known in the file
)

// Relationship is a resolved directed edge between two existing symbols.
type Relationship struct {
	ID           string            `json:"id"`
	FromSymbolID string            `json:"from_symbol_id"`
	ToSymbolID   string            `json:"to_symbol_id"`
	Kind         RelationshipKind  `json:"kind"`
	FilePath     string            `json:"file_path"`
	LineNumber   int               `json:"line_number"`
	Confidence   float64           `json:"confidence"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// PendingRelationship is an edge whose target could not be resolved within its file.
type PendingRelationship struct {
	ID           string           `json:"id"`
	FromSymbolID string           `json:"from_symbol_id"`
	CalleeName   string           `json:"callee_name"`
	Kind         RelationshipKind `json:"kind"`
	FilePath     string           `json:"file_path"`
	LineNumber   int              `json:"line_number"`
	Confidence   float64          `json:"confidence"`
}

// Promote turns the pending edge into a Relationship pointing at target.
// The id is derived from the endpoints, so promoting twice yields the same record.
func (p *PendingRelationship) Promote(target string) *Relationship {
	return &Relationship{
		ID:           RelationshipID(p.FromSymbolID, target, p.Kind, p.FilePath, p.LineNumber),
		FromSymbolID: p.FromSymbolID,
		ToSymbolID:   target,
		Kind:         p.Kind,
		FilePath:     p.FilePath,
		LineNumber:   p.LineNumber,
		Confidence:   p.Confidence,
		Metadata:     map[string]string{"resolved_from": p.CalleeName},
	}
}

// Direction selects edges relative to a symbol.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// ParseDirection accepts outgoing, incoming or both (empty means both).
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DirectionBoth, nil
	case DirectionOutgoing, DirectionIncoming, DirectionBoth:
		return d, nil
	}
	return "", fmt.Errorf("unknown direction %q (expected outgoing, incoming or both)", s)
}
