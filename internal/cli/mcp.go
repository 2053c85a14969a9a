package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/symgraph/internal/indexer"
	"github.com/mvp-joe/symgraph/internal/mcp"
)

var mcpFlags struct {
	watch   bool
	noIndex bool
}

// mcpCmd represents the mcp command
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for code intelligence queries",
	Long: `Start the Model Context Protocol (MCP) server that lets coding assistants
search symbols, follow references and walk the call graph of the workspace.

The server brings the index up to date before serving, communicates via stdio
and, with --watch, applies file changes while it runs.

Example:
  symgraph mcp --watch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := workspaceRoot()
		if err != nil {
			return err
		}
		return runMCP(cmd.Context(), root, os.Stderr)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().BoolVarP(&mcpFlags.watch, "watch", "w", false, "Keep the index up to date while serving")
	mcpCmd.Flags().BoolVar(&mcpFlags.noIndex, "no-index", false, "Serve the existing index without updating it first")
}

// runMCP writes diagnostics to diag; stdout belongs to the protocol.
func runMCP(ctx context.Context, root string, diag io.Writer) error {
	ws, err := openWorkspace(ctx, root)
	if err != nil {
		return err
	}
	defer ws.Close()

	fmt.Fprintf(diag, "symgraph MCP server %s\n", Version)
	fmt.Fprintf(diag, "Workspace: %s\n\n", root)

	g, err := ws.graph(ctx)
	if err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}
	defer g.Close()

	p, err := ws.pipeline(
		indexer.WithProgress(NewCLIProgressReporter(diag, true)),
		indexer.WithOnChange(func(paths []string) { g.Invalidate() }),
	)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	if !mcpFlags.noIndex {
		stats, err := p.IndexAll(ctx)
		if err != nil {
			return fmt.Errorf("initial indexing failed: %w", err)
		}
		fmt.Fprintf(diag, "Indexed %d file(s), %d unchanged\n", stats.FilesIndexed, stats.FilesUnchanged)
	}

	if mcpFlags.watch {
		icfg := ws.cfg.ToIndexerConfig(root)
		w, err := indexer.NewWatcher(root, p.Discovery(), p, icfg.Debounce, icfg.Workers)
		if err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		w.Start(ctx)
		defer w.Stop()
		log.Printf("Watching %s for changes", root)
	}

	server, err := mcp.NewServer(mcp.Deps{
		Store:    ws.store,
		Search:   ws.engine,
		Graph:    g,
		Embedder: ws.provider,
	}, Version)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	// Serve (blocks until shutdown)
	if err := server.Serve(ctx); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
