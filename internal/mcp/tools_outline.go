package mcp

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/symgraph/internal/model"
)

// DefaultOutlineDepth shows top-level symbols and their direct members.
const DefaultOutlineDepth = 1

// OutlineRequest is the get_symbols argument set. MaxDepth 0 lists top-level
// symbols only; nil means DefaultOutlineDepth.
type OutlineRequest struct {
	FilePath string `json:"file_path"`
	MaxDepth *int   `json:"max_depth,omitempty"`
	Target   string `json:"target,omitempty"`
}

// OutlineNode is one symbol of a file outline with its nested members.
type OutlineNode struct {
	SymbolResult
	Visibility model.Visibility `json:"visibility,omitempty"`
	Children   []*OutlineNode   `json:"children,omitempty"`
	// Hidden counts direct members cut off by max_depth.
	Hidden int `json:"hidden_children,omitempty"`
}

// OutlineResponse is the symbol tree of one file.
type OutlineResponse struct {
	FilePath string                   `json:"file_path"`
	Symbols  []*OutlineNode           `json:"symbols"`
	Total    int                      `json:"total"`
	TopLevel int                      `json:"top_level"`
	ByKind   map[model.SymbolKind]int `json:"by_kind"`
}

// AddOutlineTool registers the get_symbols tool.
func AddOutlineTool(s *server.MCPServer, store Store) {
	s.AddTool(mcp.NewTool(
		"get_symbols",
		mcp.WithDescription("Outline a file without reading it: classes, functions and their members as a tree, with signatures and line numbers. Use before reading a large file."),
		mcp.WithString("file_path",
			mcp.Required(),
			mcp.Description("Workspace-relative file path (e.g., 'src/user.py')")),
		mcp.WithNumber("max_depth",
			mcp.Description("Nesting levels below top-level symbols to include (0 = top-level only, default: 1)")),
		mcp.WithString("target",
			mcp.Description("Keep only top-level symbols whose tree contains a name matching this text (case-insensitive)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	), createOutlineHandler(store))
}

func createOutlineHandler(store Store) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var req OutlineRequest
		if err := bindArguments(request, &req); err != nil {
			return invalidArguments(err), nil
		}
		resp, err := FileOutline(ctx, store, req)
		if err != nil {
			return toolError(err)
		}
		return marshalToolResponse(resp)
	}
}

// FileOutline builds the parent_id tree of a file's definitions. Import and
// export bindings are left out. A symbol whose parent is not in the file is
// treated as top-level.
func FileOutline(ctx context.Context, store Store, req OutlineRequest) (*OutlineResponse, error) {
	if req.FilePath == "" {
		return nil, requestErrorf("file_path parameter is required")
	}
	path, err := model.NormalizePath(".", req.FilePath)
	if err != nil {
		return nil, requestErrorf("invalid file_path: %v", err)
	}
	depth := DefaultOutlineDepth
	if req.MaxDepth != nil {
		depth = *req.MaxDepth
	}
	if depth < 0 {
		return nil, requestErrorf("max_depth must not be negative")
	}

	all, err := store.SymbolsInFile(ctx, path)
	if err != nil {
		return nil, err
	}
	var symbols []*model.Symbol
	for _, s := range all {
		if !s.Kind.IsBinding() {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 {
		return nil, requestErrorf("no symbols found in %s: the file is not indexed or defines nothing", path)
	}

	byID := make(map[string]*model.Symbol, len(symbols))
	for _, s := range symbols {
		byID[s.ID] = s
	}
	children := make(map[string][]*model.Symbol)
	var roots []*model.Symbol
	for _, s := range symbols {
		if _, ok := byID[s.ParentID]; ok {
			children[s.ParentID] = append(children[s.ParentID], s)
			continue
		}
		roots = append(roots, s)
	}

	if req.Target != "" {
		needle := strings.ToLower(req.Target)
		var keep []*model.Symbol
		for _, r := range roots {
			if subtreeMatches(r, children, needle) {
				keep = append(keep, r)
			}
		}
		if len(keep) == 0 {
			return nil, requestErrorf("no symbols matching %q in %s", req.Target, path)
		}
		roots = keep
	}

	resp := &OutlineResponse{
		FilePath: path,
		Symbols:  make([]*OutlineNode, 0, len(roots)),
		Total:    len(symbols),
		TopLevel: len(roots),
		ByKind:   make(map[model.SymbolKind]int),
	}
	for _, s := range symbols {
		resp.ByKind[s.Kind]++
	}
	for _, r := range roots {
		resp.Symbols = append(resp.Symbols, outlineNode(r, children, 0, depth))
	}
	return resp, nil
}

func outlineNode(s *model.Symbol, children map[string][]*model.Symbol, level, depth int) *OutlineNode {
	n := &OutlineNode{SymbolResult: symbolResult(s)}
	if s.Visibility != model.VisibilityPublic {
		n.Visibility = s.Visibility
	}
	if level >= depth {
		n.Hidden = len(children[s.ID])
		return n
	}
	for _, c := range children[s.ID] {
		n.Children = append(n.Children, outlineNode(c, children, level+1, depth))
	}
	return n
}

func subtreeMatches(s *model.Symbol, children map[string][]*model.Symbol, needle string) bool {
	if strings.Contains(strings.ToLower(s.Name), needle) {
		return true
	}
	for _, c := range children[s.ID] {
		if subtreeMatches(c, children, needle) {
			return true
		}
	}
	return false
}
