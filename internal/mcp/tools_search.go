package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/symgraph/internal/embed"
	"github.com/mvp-joe/symgraph/internal/model"
	"github.com/mvp-joe/symgraph/internal/search"
)

// Search modes.
const (
	ModeText     = "text"     // code search engine
	ModeKeyword  = "keyword"  // SQLite full-text mirror
	ModeSemantic = "semantic" // nearest embeddings
)

// SearchRequest is the search_symbols argument set.
type SearchRequest struct {
	Query    string `json:"query"`
	Mode     string `json:"mode,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Language string `json:"language,omitempty"`
	FilePath string `json:"file_path,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// SearchResponse is the search_symbols result.
type SearchResponse struct {
	Query   string         `json:"query"`
	Mode    string         `json:"mode"`
	Results []SymbolResult `json:"results"`
	Total   int            `json:"total"`
	TookMs  int            `json:"took_ms"`
}

// AddSearchTool registers the search_symbols tool.
func AddSearchTool(s *server.MCPServer, store Store, searcher SymbolSearcher, embedder embed.Provider) {
	tool := mcp.NewTool(
		"search_symbols",
		mcp.WithDescription("Find symbols (functions, types, methods, fields) by name, signature or doc comment. Mode 'text' (default) uses the code search engine and understands camelCase and snake_case; 'keyword' uses prefix matching over the full-text index; 'semantic' finds symbols whose signature and docs are closest in meaning to the query."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search text (e.g., 'parse request', 'HTTPClient', 'retry with backoff')")),
		mcp.WithString("mode",
			mcp.Description("Search mode: text (default), keyword, or semantic"),
			mcp.Enum(ModeText, ModeKeyword, ModeSemantic)),
		mcp.WithString("kind",
			mcp.Description("Filter by symbol kind (function, method, class, struct, interface, ...)")),
		mcp.WithString("language",
			mcp.Description("Filter by language (go, python, typescript, ...)")),
		mcp.WithString("file_path",
			mcp.Description("Filter by file path pattern (e.g., 'internal/*')")),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results to return (1-100, default: 20)")),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
	)
	s.AddTool(tool, createSearchHandler(store, searcher, embedder))
}

func createSearchHandler(store Store, searcher SymbolSearcher, embedder embed.Provider) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var req SearchRequest
		if err := bindArguments(request, &req); err != nil {
			return invalidArguments(err), nil
		}
		resp, err := SearchSymbols(ctx, Deps{Store: store, Search: searcher, Embedder: embedder}, req)
		if err != nil {
			return toolError(err)
		}
		return marshalToolResponse(resp)
	}
}

// SearchSymbols runs a search in the requested mode. Request problems are
// returned as *RequestError.
func SearchSymbols(ctx context.Context, deps Deps, req SearchRequest) (*SearchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, requestErrorf("query parameter is required")
	}
	var kind model.SymbolKind
	if req.Kind != "" {
		k, err := model.ParseSymbolKind(req.Kind)
		if err != nil {
			return nil, requestErrorf("%v", err)
		}
		kind = k
	}
	limit := clamp(req.Limit, 20, 1, 100)
	if req.Mode == "" {
		req.Mode = ModeText
	}

	start := time.Now()
	results := []SymbolResult{}
	switch req.Mode {
	case ModeText:
		hits, err := deps.Search.Search(ctx, search.Query{
			Text:     req.Query,
			Kind:     kind,
			Language: req.Language,
			FilePath: req.FilePath,
			Limit:    limit,
		})
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}
		for _, h := range hits {
			results = append(results, SymbolResult{
				ID:         h.SymbolID,
				Name:       h.Name,
				Kind:       h.Kind,
				Language:   h.Language,
				FilePath:   h.FilePath,
				StartLine:  h.StartLine,
				Score:      h.Score,
				Highlights: h.Highlights,
			})
		}

	case ModeKeyword, ModeSemantic:
		f, err := newFilter(kind, req.Language, req.FilePath)
		if err != nil {
			return nil, requestErrorf("%v", err)
		}
		// Over-fetch so filtering still fills the page.
		fetch := limit
		if !f.empty() {
			fetch = limit * 5
		}
		var hits []storageHit
		if req.Mode == ModeKeyword {
			hits, err = keywordHits(ctx, deps.Store, req.Query, fetch)
		} else {
			if deps.Embedder == nil {
				return nil, requestErrorf("semantic search is not available: no embedding provider configured")
			}
			hits, err = semanticHits(ctx, deps.Store, deps.Embedder, req.Query, fetch)
		}
		if err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}
		for _, h := range hits {
			if len(results) >= limit {
				break
			}
			if !f.match(h.symbol) {
				continue
			}
			r := symbolResult(h.symbol)
			r.Score = h.score
			results = append(results, r)
		}

	default:
		return nil, requestErrorf("invalid mode: %s (must be one of: text, keyword, semantic)", req.Mode)
	}

	return &SearchResponse{
		Query:   req.Query,
		Mode:    req.Mode,
		Results: results,
		Total:   len(results),
		TookMs:  int(time.Since(start).Milliseconds()),
	}, nil
}

type storageHit struct {
	symbol *model.Symbol
	score  float64
}

func keywordHits(ctx context.Context, store Store, text string, limit int) ([]storageHit, error) {
	hits, err := store.SearchText(ctx, text, limit)
	if err != nil {
		return nil, err
	}
	out := make([]storageHit, len(hits))
	for i, h := range hits {
		out[i] = storageHit{symbol: h.Symbol, score: h.Score}
	}
	return out, nil
}

func semanticHits(ctx context.Context, store Store, embedder embed.Provider, text string, limit int) ([]storageHit, error) {
	vecs, err := embedder.Embed(ctx, []string{text}, embed.EmbedModeQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedding provider returned %d vectors for 1 query", len(vecs))
	}
	hits, err := store.SemanticSearch(ctx, vecs[0], limit)
	if err != nil {
		return nil, err
	}
	out := make([]storageHit, len(hits))
	for i, h := range hits {
		out[i] = storageHit{symbol: h.Symbol, score: h.Score}
	}
	return out, nil
}

// filter applies the search filters to store hits, which come back
// unfiltered. The path pattern follows the search engine's wildcard rules:
// "*" crosses directory separators.
type filter struct {
	kind     model.SymbolKind
	language string
	pattern  glob.Glob
}

func newFilter(kind model.SymbolKind, language, pattern string) (filter, error) {
	f := filter{kind: kind, language: language}
	if pattern != "" {
		g, err := glob.Compile(pattern)
		if err != nil {
			return f, fmt.Errorf("invalid file_path pattern %q: %w", pattern, err)
		}
		f.pattern = g
	}
	return f, nil
}

func (f filter) empty() bool { return f.kind == "" && f.language == "" && f.pattern == nil }

func (f filter) match(s *model.Symbol) bool {
	if f.kind != "" && s.Kind != f.kind {
		return false
	}
	if f.language != "" && s.Language != f.language {
		return false
	}
	if f.pattern != nil && !f.pattern.Match(s.FilePath) {
		return false
	}
	return true
}
