package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/symgraph/internal/model"
	"github.com/mvp-joe/symgraph/internal/storage"
)

// SymbolRequest is the get_symbol argument set. ID wins over Name.
type SymbolRequest struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name,omitempty"`
	Kind     string `json:"kind,omitempty"`
	FilePath string `json:"file_path,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// SymbolAtRequest is the symbol_at argument set.
type SymbolAtRequest struct {
	FilePath string `json:"file_path"`
	Line     int    `json:"line"`
}

// SymbolsResponse lists matching symbols.
type SymbolsResponse struct {
	Symbols []SymbolResult `json:"symbols"`
	Total   int            `json:"total"`
}

// AddSymbolTools registers get_symbol and symbol_at.
func AddSymbolTools(s *server.MCPServer, store Store) {
	s.AddTool(mcp.NewTool(
		"get_symbol",
		mcp.WithDescription("Look up symbol definitions by id or exact name, optionally narrowed by kind and file. Returns location, signature and doc comment."),
		mcp.WithString("id",
			mcp.Description("Symbol id (as returned by other tools)")),
		mcp.WithString("name",
			mcp.Description("Exact symbol name (e.g., 'ParseFile')")),
		mcp.WithString("kind",
			mcp.Description("Filter by symbol kind")),
		mcp.WithString("file_path",
			mcp.Description("Filter by workspace-relative file path")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (1-200, default: 50)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	), createSymbolHandler(store))

	s.AddTool(mcp.NewTool(
		"symbol_at",
		mcp.WithDescription("Find the innermost symbol enclosing a line of a file."),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Workspace-relative file path")),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("1-based line number")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	), createSymbolAtHandler(store))
}

func createSymbolHandler(store Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var req SymbolRequest
		if err := bindArguments(request, &req); err != nil {
			return invalidArguments(err), nil
		}
		if req.ID == "" && req.Name == "" {
			return mcp.NewToolResultError("id or name parameter is required"), nil
		}

		var symbols []*model.Symbol
		if req.ID != "" {
			sym, err := store.GetSymbol(ctx, req.ID)
			if errors.Is(err, storage.ErrNotFound) {
				return mcp.NewToolResultError(fmt.Sprintf("symbol %s not found", req.ID)), nil
			}
			if err != nil {
				return nil, err
			}
			symbols = append(symbols, sym)
		} else {
			q := storage.SymbolQuery{Name: req.Name, FilePath: req.FilePath, Limit: clamp(req.Limit, 50, 1, 200)}
			if req.Kind != "" {
				k, err := model.ParseSymbolKind(req.Kind)
				if err != nil {
					return mcp.NewToolResultError(err.Error()), nil
				}
				q.Kind = k
			}
			found, err := store.FindSymbols(ctx, q)
			if err != nil {
				return nil, err
			}
			symbols = found
		}

		resp := &SymbolsResponse{Symbols: make([]SymbolResult, 0, len(symbols))}
		for _, sym := range symbols {
			resp.Symbols = append(resp.Symbols, symbolResult(sym))
		}
		resp.Total = len(resp.Symbols)
		return marshalToolResponse(resp)
	}
}

func createSymbolAtHandler(store Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var req SymbolAtRequest
		if err := bindArguments(request, &req); err != nil {
			return invalidArguments(err), nil
		}
		if req.FilePath == "" {
			return mcp.NewToolResultError("file_path parameter is required"), nil
		}
		if req.Line < 1 {
			return mcp.NewToolResultError("line must be a positive line number"), nil
		}

		sym, err := store.SymbolAt(ctx, req.FilePath, req.Line)
		if errors.Is(err, storage.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("no symbol encloses %s:%d", req.FilePath, req.Line)), nil
		}
		if err != nil {
			return nil, err
		}
		return marshalToolResponse(symbolResult(sym))
	}
}
