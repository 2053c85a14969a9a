package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mvp-joe/symgraph/internal/config"
	"github.com/mvp-joe/symgraph/internal/embed"
	"github.com/mvp-joe/symgraph/internal/graph"
	"github.com/mvp-joe/symgraph/internal/indexer"
	"github.com/mvp-joe/symgraph/internal/search"
	"github.com/mvp-joe/symgraph/internal/storage"
)

// workspace bundles the services of one opened workspace.
type workspace struct {
	root     string
	cfg      *config.Config
	provider embed.Provider
	engine   *search.Engine
	store    *storage.Store
}

// openWorkspace loads the configuration of root, starts the embedding
// provider and opens the database with the search engine attached.
func openWorkspace(ctx context.Context, root string) (*workspace, error) {
	cfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if verbose {
		log.Printf("Workspace: %s (provider %s, backend %s)", root, cfg.Embedding.Provider, cfg.Storage.VectorBackend)
	}

	provider, err := embed.NewProvider(cfg.ToEmbedConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding provider: %w", err)
	}
	if err := provider.Initialize(ctx); err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	dbPath := cfg.DatabasePath(root)
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		provider.Close()
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	engine, err := search.Open(cfg.SearchIndexPath(root))
	if err != nil {
		provider.Close()
		return nil, err
	}

	opts := cfg.ToStoreOptions(root)
	opts.Dimensions = provider.Dimensions()
	opts.EmbeddingModel = provider.Model()
	opts.Observers = []storage.Observer{engine}
	store, err := storage.Open(ctx, dbPath, opts)
	if err != nil {
		engine.Close()
		provider.Close()
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	return &workspace{root: root, cfg: cfg, provider: provider, engine: engine, store: store}, nil
}

// pipeline builds the update pipeline for the workspace.
func (w *workspace) pipeline(opts ...indexer.Option) (*indexer.Pipeline, error) {
	opts = append([]indexer.Option{indexer.WithEmbedder(w.provider)}, opts...)
	return indexer.NewPipeline(w.cfg.ToIndexerConfig(w.root), w.store, opts...)
}

// graph loads the call graph.
func (w *workspace) graph(ctx context.Context) (*graph.Searcher, error) {
	return graph.NewSearcher(ctx, w.store, w.root)
}

// Close releases every service.
func (w *workspace) Close() error {
	return errors.Join(w.store.Close(), w.engine.Close(), w.provider.Close())
}
