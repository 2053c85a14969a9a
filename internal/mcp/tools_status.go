package mcp

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// StatusResponse is the index_status result.
type StatusResponse struct {
	WorkspaceID   string         `json:"workspace_id"`
	LastIndexed   *time.Time     `json:"last_indexed,omitempty"`
	Files         int            `json:"files"`
	Symbols       int            `json:"symbols"`
	Relationships int            `json:"relationships"`
	Pending       int            `json:"pending"`
	Unresolved    int            `json:"unresolved"`
	Identifiers   int            `json:"identifiers"`
	Embeddings    int            `json:"embeddings"`
	Vectors       int            `json:"vectors"`
	Unembedded    int            `json:"unembedded"`
	ByLanguage    map[string]int `json:"by_language"`
	ByKind        map[string]int `json:"by_kind"`
}

// AddStatusTool registers the index_status tool.
func AddStatusTool(s *server.MCPServer, store Store) {
	tool := mcp.NewTool(
		"index_status",
		mcp.WithDescription("Report what the index holds: files, symbols, relationships, unresolved references and embedding coverage, plus symbol counts per language and kind."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.AddTool(tool, createStatusHandler(store))
}

func createStatusHandler(store Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := BuildStatus(ctx, store)
		if err != nil {
			return nil, err
		}
		return marshalToolResponse(resp)
	}
}

// BuildStatus collects the status report. The CLI prints the same report.
func BuildStatus(ctx context.Context, store Store) (*StatusResponse, error) {
	st, err := store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	resp := &StatusResponse{
		WorkspaceID:   store.WorkspaceID(),
		Files:         st.Files,
		Symbols:       st.Symbols,
		Relationships: st.Relationships,
		Pending:       st.Pending,
		Unresolved:    st.Unresolved,
		Identifiers:   st.Identifiers,
		Embeddings:    st.Embeddings,
		Vectors:       st.Vectors,
		ByLanguage:    st.ByLanguage,
		ByKind:        st.ByKind,
	}
	if resp.Unembedded, err = store.CountUnembedded(ctx); err != nil {
		return nil, err
	}
	last, err := store.LastIndexed(ctx)
	if err != nil {
		return nil, err
	}
	if !last.IsZero() {
		resp.LastIndexed = &last
	}
	return resp, nil
}
