// Package mcp exposes the query operations over the Model Context Protocol:
// symbol search, symbol lookup, file outlines, references, graph queries,
// call-path tracing and index status.
package mcp

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/mvp-joe/symgraph/internal/embed"
	"github.com/mvp-joe/symgraph/internal/graph"
	"github.com/mvp-joe/symgraph/internal/model"
	"github.com/mvp-joe/symgraph/internal/search"
	"github.com/mvp-joe/symgraph/internal/storage"
)

// Store is the read side of the workspace database the tools query.
type Store interface {
	GetSymbol(ctx context.Context, id string) (*model.Symbol, error)
	GetSymbols(ctx context.Context, ids []string) (map[string]*model.Symbol, error)
	FindSymbols(ctx context.Context, q storage.SymbolQuery) ([]*model.Symbol, error)
	SymbolsInFile(ctx context.Context, path string) ([]*model.Symbol, error)
	SymbolAt(ctx context.Context, path string, line int) (*model.Symbol, error)
	ListRelationships(ctx context.Context, q storage.RelationshipQuery) ([]*model.Relationship, error)
	SearchText(ctx context.Context, text string, limit int) ([]storage.SearchHit, error)
	SemanticSearch(ctx context.Context, query []float32, k int) ([]storage.SearchHit, error)
	Stats(ctx context.Context) (*storage.Stats, error)
	CountUnembedded(ctx context.Context) (int, error)
	LastIndexed(ctx context.Context) (time.Time, error)
	WorkspaceID() string
}

// SymbolSearcher is the code search engine.
type SymbolSearcher interface {
	Search(ctx context.Context, q search.Query) ([]search.Hit, error)
}

// GraphQuerier answers structural queries.
type GraphQuerier interface {
	Query(ctx context.Context, req *graph.QueryRequest) (*graph.QueryResponse, error)
}

// Deps are the services the tools run against. Embedder may be nil, which
// disables semantic search.
type Deps struct {
	Store    Store
	Search   SymbolSearcher
	Graph    GraphQuerier
	Embedder embed.Provider
}

// Server manages the MCP server lifecycle.
type Server struct {
	mcp *server.MCPServer
}

// NewServer creates an MCP server with every tool registered.
func NewServer(deps Deps, version string) (*Server, error) {
	if deps.Store == nil || deps.Search == nil || deps.Graph == nil {
		return nil, fmt.Errorf("store, search engine and graph are required")
	}

	s := server.NewMCPServer(
		"symgraph",
		version,
		server.WithToolCapabilities(true),
	)
	AddSearchTool(s, deps.Store, deps.Search, deps.Embedder)
	AddSymbolTools(s, deps.Store)
	AddOutlineTool(s, deps.Store)
	AddReferencesTool(s, deps.Store)
	AddGraphTool(s, deps.Graph)
	AddTraceTool(s, deps.Graph)
	AddStatusTool(s, deps.Store)

	return &Server{mcp: s}, nil
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// Serve serves stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting MCP server on stdio...")
		if err := server.ServeStdio(s.mcp); err != nil {
			errCh <- fmt.Errorf("MCP server error: %w", err)
		}
		close(errCh)
	}()

	select {
	case <-sigCh:
		log.Printf("Received shutdown signal, stopping gracefully...")
		return nil
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
