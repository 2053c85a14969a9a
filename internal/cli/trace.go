package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/symgraph/internal/graph"
)

var traceFlags struct {
	operation string
	depth     int
	context   bool
	limit     int
	json      bool
}

var traceCmd = &cobra.Command{
	Use:   "trace <symbol> [to-symbol]",
	Short: "Walk the call and type graph",
	Long: `Trace answers structural questions over resolved relationships.

With one symbol it runs --op (callers by default) to --depth hops. With two
symbols it prints the shortest call path from the first to the second.

Examples:
  symgraph trace ParseFile
  symgraph trace ParseFile --op callees --depth 3
  symgraph trace Shape --op implementations
  symgraph trace main ParseFile --context`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := workspaceRoot()
		if err != nil {
			return err
		}
		req := &graph.QueryRequest{
			Operation:      graph.QueryOperation(traceFlags.operation),
			Target:         args[0],
			Depth:          traceFlags.depth,
			IncludeContext: traceFlags.context,
			MaxResults:     traceFlags.limit,
		}
		if len(args) == 2 {
			req.Operation = graph.OperationPath
			req.To = args[1]
		}
		return runTrace(cmd.Context(), root, req, traceFlags.json, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().StringVarP(&traceFlags.operation, "op", "o", string(graph.OperationCallers),
		"callers, callees, implementations, supertypes or references")
	traceCmd.Flags().IntVarP(&traceFlags.depth, "depth", "d", graph.DefaultDepth, "Traversal depth")
	traceCmd.Flags().BoolVarP(&traceFlags.context, "context", "c", false, "Include code snippets")
	traceCmd.Flags().IntVarP(&traceFlags.limit, "limit", "n", graph.DefaultMaxResults, "Maximum results")
	traceCmd.Flags().BoolVar(&traceFlags.json, "json", false, "Output as JSON")
}

func runTrace(ctx context.Context, root string, req *graph.QueryRequest, asJSON bool, out io.Writer) error {
	ws, err := openWorkspace(ctx, root)
	if err != nil {
		return err
	}
	defer ws.Close()

	g, err := ws.graph(ctx)
	if err != nil {
		return err
	}
	defer g.Close()

	resp, err := g.Query(ctx, req)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(out, resp)
	}

	if len(resp.Results) == 0 {
		if req.Operation == graph.OperationPath {
			fmt.Fprintf(out, "No call path from %s to %s\n", req.Target, req.To)
		} else {
			fmt.Fprintf(out, "No %s of %s\n", req.Operation, req.Target)
		}
		return nil
	}
	for _, r := range resp.Results {
		indent := strings.Repeat("  ", r.Depth)
		if req.Operation == graph.OperationPath && r.Depth > 0 {
			indent = strings.Repeat("  ", r.Depth-1) + "└ "
		}
		fmt.Fprintf(out, "%s%s  %s  %s\n", indent,
			nameColor.Sprint(r.Node.Name), kindColor.Sprint(r.Node.Kind), pathColor.Sprintf("%s:%d", r.Node.File, r.Node.StartLine))
		if r.Context != "" {
			for _, line := range strings.Split(strings.TrimRight(r.Context, "\n"), "\n") {
				fmt.Fprintf(out, "%s    %s\n", indent, line)
			}
		}
	}
	if resp.Truncated {
		fmt.Fprintf(out, "\n%d of %d results shown\n", resp.TotalReturned, resp.TotalFound)
	}
	return nil
}
