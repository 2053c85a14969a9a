// Package graph answers structural questions over resolved relationships:
// who calls a symbol, what it calls, what implements it, and how one symbol
// reaches another.
package graph

import "github.com/mvp-joe/symgraph/internal/model"

// Node is a symbol as the graph sees it.
type Node struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Kind      model.SymbolKind `json:"kind"`
	Language  string           `json:"language"`
	File      string           `json:"file"`
	StartLine int              `json:"start_line"`
	EndLine   int              `json:"end_line"`
	StartByte int              `json:"-"`
	EndByte   int              `json:"-"`
}

func nodeFromSymbol(s *model.Symbol) *Node {
	return &Node{
		ID:        s.ID,
		Name:      s.Name,
		Kind:      s.Kind,
		Language:  s.Language,
		File:      s.FilePath,
		StartLine: s.StartLine,
		EndLine:   s.EndLine,
		StartByte: s.StartByte,
		EndByte:   s.EndByte,
	}
}

// Edge is one resolved relationship.
type Edge struct {
	From string                 `json:"from"`
	To   string                 `json:"to"`
	Kind model.RelationshipKind `json:"kind"`
	File string                 `json:"file"`
	Line int                    `json:"line"`
}

// QueryOperation represents the type of graph query to perform.
type QueryOperation string

const (
	OperationCallers         QueryOperation = "callers"
	OperationCallees         QueryOperation = "callees"
	OperationImplementations QueryOperation = "implementations"
	OperationSupertypes      QueryOperation = "supertypes"
	OperationReferences      QueryOperation = "references"
	OperationPath            QueryOperation = "path"
)

// Query defaults and limits
const (
	DefaultDepth        = 1
	DefaultMaxResults   = 100
	DefaultContextLines = 3
	MaxDepth            = 10
	MaxContextLines     = 20
)

// QueryRequest represents a graph query request. Target and To accept a
// symbol id or a bare name; a name matching several symbols queries all of
// them.
type QueryRequest struct {
	Operation      QueryOperation
	Target         string
	To             string // path operation only
	IncludeContext bool
	ContextLines   int // default 3
	Depth          int // default 1, capped at MaxDepth
	MaxResults     int // default 100
}

// QueryResponse represents the response to a graph query.
type QueryResponse struct {
	Operation     string        `json:"operation"`
	Target        string        `json:"target"`
	Results       []QueryResult `json:"results"`
	TotalFound    int           `json:"total_found"`
	TotalReturned int           `json:"total_returned"`
	Truncated     bool          `json:"truncated"`
	Metadata      ResponseMeta  `json:"metadata"`
}

// QueryResult represents a single result from a graph query. For the path
// operation Depth is the hop count from the start.
type QueryResult struct {
	Node    *Node  `json:"node"`
	Context string `json:"context,omitempty"`
	Depth   int    `json:"depth"`
}

// ResponseMeta contains metadata about the query execution.
type ResponseMeta struct {
	TookMs int    `json:"took_ms"`
	Nodes  int    `json:"nodes"`
	Edges  int    `json:"edges"`
	Source string `json:"source"` // always "graph"
}
