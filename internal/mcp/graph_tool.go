package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/symgraph/internal/graph"
	"github.com/mvp-joe/symgraph/internal/model"
	"github.com/mvp-joe/symgraph/internal/storage"
)

// GraphRequest is the query_graph argument set.
type GraphRequest struct {
	Operation      string `json:"operation"`
	Target         string `json:"target"`
	To             string `json:"to,omitempty"`
	IncludeContext *bool  `json:"include_context,omitempty"`
	ContextLines   int    `json:"context_lines,omitempty"`
	Depth          int    `json:"depth,omitempty"`
	MaxResults     int    `json:"max_results,omitempty"`
}

var graphOperations = map[string]graph.QueryOperation{
	"callers":         graph.OperationCallers,
	"callees":         graph.OperationCallees,
	"implementations": graph.OperationImplementations,
	"supertypes":      graph.OperationSupertypes,
	"references":      graph.OperationReferences,
	"path":            graph.OperationPath,
}

// AddGraphTool registers the query_graph tool.
func AddGraphTool(s *server.MCPServer, querier GraphQuerier) {
	tool := mcp.NewTool(
		"query_graph",
		mcp.WithDescription("Query structural code relationships for refactoring and impact analysis. Operations: callers (who calls this), callees (what this calls), implementations (what extends or implements this type), supertypes (what this type extends or implements), references (every incoming edge), path (shortest call path from target to 'to')."),
		mcp.WithString("operation",
			mcp.Required(),
			mcp.Description("Type of query"),
			mcp.Enum("callers", "callees", "implementations", "supertypes", "references", "path")),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Symbol id or name (e.g., 'ParseFile')")),
		mcp.WithString("to",
			mcp.Description("Destination symbol id or name (path operation only)")),
		mcp.WithBoolean("include_context",
			mcp.Description("Include code snippets in results (default: true)")),
		mcp.WithNumber("context_lines",
			mcp.Description("Number of context lines around code (default: 3, max: 20)")),
		mcp.WithNumber("depth",
			mcp.Description("Traversal depth for recursive queries (default: 1, max: 10)")),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of results to return (default: 100, max: 500)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.AddTool(tool, createGraphHandler(querier))
}

func createGraphHandler(querier GraphQuerier) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args GraphRequest
		if err := bindArguments(request, &args); err != nil {
			return invalidArguments(err), nil
		}
		if args.Operation == "" {
			return mcp.NewToolResultError("operation parameter is required"), nil
		}
		op, ok := graphOperations[args.Operation]
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("invalid operation: %s (must be one of: callers, callees, implementations, supertypes, references, path)", args.Operation)), nil
		}
		if args.Target == "" {
			return mcp.NewToolResultError("target parameter is required"), nil
		}
		if op == graph.OperationPath && args.To == "" {
			return mcp.NewToolResultError("to parameter is required for the path operation"), nil
		}

		req := &graph.QueryRequest{
			Operation:      op,
			Target:         args.Target,
			To:             args.To,
			IncludeContext: args.IncludeContext == nil || *args.IncludeContext,
			ContextLines:   clamp(args.ContextLines, graph.DefaultContextLines, 1, graph.MaxContextLines),
			Depth:          clamp(args.Depth, graph.DefaultDepth, 1, graph.MaxDepth),
			MaxResults:     clamp(args.MaxResults, graph.DefaultMaxResults, 1, 500),
		}
		return runGraphQuery(ctx, querier, req)
	}
}

// TraceRequest is the trace_call_path argument set.
type TraceRequest struct {
	From           string `json:"from"`
	To             string `json:"to"`
	IncludeContext bool   `json:"include_context,omitempty"`
}

// AddTraceTool registers the trace_call_path tool.
func AddTraceTool(s *server.MCPServer, querier GraphQuerier) {
	tool := mcp.NewTool(
		"trace_call_path",
		mcp.WithDescription("Trace the shortest chain of calls from one symbol to another. Returns the symbols on the path in call order; an empty result means 'from' cannot reach 'to'."),
		mcp.WithString("from",
			mcp.Required(),
			mcp.Description("Starting symbol id or name")),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Destination symbol id or name")),
		mcp.WithBoolean("include_context",
			mcp.Description("Include code snippets for each hop (default: false)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.AddTool(tool, createTraceHandler(querier))
}

func createTraceHandler(querier GraphQuerier) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args TraceRequest
		if err := bindArguments(request, &args); err != nil {
			return invalidArguments(err), nil
		}
		if args.From == "" || args.To == "" {
			return mcp.NewToolResultError("from and to parameters are required"), nil
		}
		return runGraphQuery(ctx, querier, &graph.QueryRequest{
			Operation:      graph.OperationPath,
			Target:         args.From,
			To:             args.To,
			IncludeContext: args.IncludeContext,
			MaxResults:     graph.MaxDepth * 10,
		})
	}
}

func runGraphQuery(ctx context.Context, querier GraphQuerier, req *graph.QueryRequest) (*mcp.CallToolResult, error) {
	response, err := querier.Query(ctx, req)
	if err != nil {
		if isUserError(err) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("graph query failed: %w", err)
	}
	return marshalToolResponse(response)
}

// isUserError reports errors caused by the request rather than the system.
func isUserError(err error) bool {
	if errors.Is(err, storage.ErrNotFound) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "unsupported") || strings.Contains(msg, "required")
}

// ReferencesRequest is the find_references argument set.
type ReferencesRequest struct {
	Target    string `json:"target"`
	Direction string `json:"direction,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// Reference is one resolved edge touching a target, seen from the target.
type Reference struct {
	ID         string                 `json:"id"`
	Kind       model.RelationshipKind `json:"kind"`
	Direction  model.Direction        `json:"direction"`
	TargetID   string                 `json:"target_id"`
	Symbol     *SymbolResult          `json:"symbol,omitempty"`
	FilePath   string                 `json:"file_path"`
	Line       int                    `json:"line"`
	Confidence float64                `json:"confidence"`
}

// ReferencesResponse is the find_references result.
type ReferencesResponse struct {
	Targets    []SymbolResult `json:"targets"`
	References []Reference    `json:"references"`
	Total      int            `json:"total"`
}

// AddReferencesTool registers the find_references tool.
func AddReferencesTool(s *server.MCPServer, store Store) {
	tool := mcp.NewTool(
		"find_references",
		mcp.WithDescription("List resolved relationships (calls, extends, implements, uses) touching a symbol, including edges that cross files and languages. Each reference names the symbol at the other end."),
		mcp.WithString("target",
			mcp.Required(),
			mcp.Description("Symbol id or exact name")),
		mcp.WithString("direction",
			mcp.Description("incoming, outgoing, or both (default)"),
			mcp.Enum(string(model.DirectionIncoming), string(model.DirectionOutgoing), string(model.DirectionBoth))),
		mcp.WithString("kind",
			mcp.Description("Filter by relationship kind: calls, extends, implements, uses")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum references per target (1-500, default: 100)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.AddTool(tool, createReferencesHandler(store))
}

func createReferencesHandler(store Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var args ReferencesRequest
		if err := bindArguments(request, &args); err != nil {
			return invalidArguments(err), nil
		}
		resp, err := FindReferences(ctx, store, args)
		if err != nil {
			return toolError(err)
		}
		return marshalToolResponse(resp)
	}
}

// FindReferences lists the resolved edges touching every symbol the target
// names. Request problems are returned as *RequestError.
func FindReferences(ctx context.Context, store Store, args ReferencesRequest) (*ReferencesResponse, error) {
	if args.Target == "" {
		return nil, requestErrorf("target parameter is required")
	}
	dir, err := model.ParseDirection(args.Direction)
	if err != nil {
		return nil, requestErrorf("%v", err)
	}
	var kind model.RelationshipKind
	if args.Kind != "" {
		if kind, err = model.ParseRelationshipKind(args.Kind); err != nil {
			return nil, requestErrorf("%v", err)
		}
	}

	targets, err := lookupTargets(ctx, store, args.Target)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, requestErrorf("symbol %q not found", args.Target)
	}

	resp := &ReferencesResponse{References: []Reference{}}
	var others []string
	for _, t := range targets {
		resp.Targets = append(resp.Targets, symbolResult(t))
		rels, err := store.ListRelationships(ctx, storage.RelationshipQuery{
			SymbolID:  t.ID,
			Direction: dir,
			Kind:      kind,
			Limit:     clamp(args.Limit, 100, 1, 500),
		})
		if err != nil {
			return nil, err
		}
		for _, r := range rels {
			ref := Reference{
				ID:         r.ID,
				Kind:       r.Kind,
				Direction:  model.DirectionOutgoing,
				TargetID:   t.ID,
				FilePath:   r.FilePath,
				Line:       r.LineNumber,
				Confidence: r.Confidence,
			}
			other := r.ToSymbolID
			if r.FromSymbolID != t.ID {
				ref.Direction = model.DirectionIncoming
				other = r.FromSymbolID
			}
			others = append(others, other)
			resp.References = append(resp.References, ref)
		}
	}

	syms, err := store.GetSymbols(ctx, others)
	if err != nil {
		return nil, err
	}
	for i := range resp.References {
		if sym, ok := syms[others[i]]; ok {
			r := symbolResult(sym)
			resp.References[i].Symbol = &r
		}
	}
	resp.Total = len(resp.References)
	return resp, nil
}

// lookupTargets resolves an id or exact name to symbols, skipping import and
// export bindings.
func lookupTargets(ctx context.Context, store Store, target string) ([]*model.Symbol, error) {
	sym, err := store.GetSymbol(ctx, target)
	if err == nil {
		return []*model.Symbol{sym}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	found, err := store.FindSymbols(ctx, storage.SymbolQuery{Name: target})
	if err != nil {
		return nil, err
	}
	var out []*model.Symbol
	for _, s := range found {
		if !s.Kind.IsBinding() {
			out = append(out, s)
		}
	}
	return out, nil
}
