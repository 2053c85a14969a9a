package cli

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/symgraph/internal/indexer"
)

var watchQuiet bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Index the workspace and keep it up to date",
	Long: `Watch brings the index up to date, then applies file changes as they happen.
Changes are debounced (indexer.debounce_ms) and a newer change to a file
supersedes an in-flight update of the same file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		root, err := workspaceRoot()
		if err != nil {
			return err
		}
		return runWatch(ctx, root, watchQuiet, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVarP(&watchQuiet, "quiet", "q", false, "Disable progress bars and non-error output")
}

// runWatch blocks until ctx is cancelled.
func runWatch(ctx context.Context, root string, quiet bool, out io.Writer) error {
	ws, err := openWorkspace(ctx, root)
	if err != nil {
		return err
	}
	defer ws.Close()

	p, err := ws.pipeline(indexer.WithProgress(NewCLIProgressReporter(out, quiet)))
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	if _, err := p.IndexAll(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("initial indexing failed: %w", err)
	}

	icfg := ws.cfg.ToIndexerConfig(root)
	w, err := indexer.NewWatcher(root, p.Discovery(), p, icfg.Debounce, icfg.Workers)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	if !quiet {
		log.Println("Watching for changes (Ctrl+C to stop)...")
	}
	w.Start(ctx)
	<-ctx.Done()
	w.Stop()

	if !quiet {
		log.Println("Watch mode stopped")
	}
	return nil
}
