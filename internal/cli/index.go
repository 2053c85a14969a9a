package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/symgraph/internal/indexer"
)

var (
	quietFlag    bool
	watchFlag    bool
	backfillFlag bool
)

// indexCmd represents the index command
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index the workspace",
	Long: `Index parses every changed source file in the workspace, stores its symbols
and relationships, embeds symbol signatures and doc comments, and resolves
references that cross files and languages.

Only files whose content changed since the last run are parsed again.

Examples:
  # Index the current directory
  symgraph index

  # Index with progress bars disabled
  symgraph index --quiet

  # Embed symbols that were stored without vectors
  symgraph index --backfill

  # Keep the index up to date as files change
  symgraph index --watch
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		root, err := workspaceRoot()
		if err != nil {
			return err
		}
		if watchFlag {
			return runWatch(ctx, root, quietFlag, cmd.OutOrStdout())
		}
		_, err = runIndex(ctx, root, indexOptions{quiet: quietFlag, backfill: backfillFlag}, cmd.OutOrStdout())
		return err
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable progress bars and non-error output")
	indexCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch for file changes and reindex incrementally")
	indexCmd.Flags().BoolVar(&backfillFlag, "backfill", false, "Embed symbols stored without vectors after indexing")
}

type indexOptions struct {
	quiet    bool
	backfill bool
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runIndex(ctx context.Context, root string, opts indexOptions, out io.Writer) (*indexer.Stats, error) {
	ws, err := openWorkspace(ctx, root)
	if err != nil {
		return nil, err
	}
	defer ws.Close()

	progress := NewCLIProgressReporter(out, opts.quiet)
	p, err := ws.pipeline(indexer.WithProgress(progress))
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	stats, err := p.IndexAll(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("indexing cancelled")
		}
		return nil, fmt.Errorf("indexing failed: %w", err)
	}
	if opts.quiet {
		fmt.Fprintf(out, "Indexing complete: %d files, %d symbols in %.2fs\n",
			stats.FilesIndexed, stats.Symbols, stats.ProcessingTimeSeconds)
	}

	if opts.backfill {
		bf, err := p.Backfill(ctx, ws.cfg.Embedding.BatchSize)
		if err != nil {
			return stats, fmt.Errorf("backfill failed: %w", err)
		}
		if !opts.quiet {
			fmt.Fprintf(out, "%s Backfilled %s embeddings (%s remaining)\n",
				okMark, formatNumber(bf.Embedded), formatNumber(bf.Remaining))
		}
	}
	return stats, nil
}
