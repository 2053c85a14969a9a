package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/symgraph/internal/mcp"
)

var searchFlags struct {
	mode     string
	kind     string
	language string
	file     string
	limit    int
	json     bool
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search symbols by name, signature or doc comment",
	Long: `Search finds symbols matching a query.

Modes:
  text      code search engine; understands camelCase and snake_case (default)
  keyword   prefix matching over the full-text index
  semantic  nearest symbols by embedding similarity

Examples:
  symgraph search "parse request"
  symgraph search retry --mode semantic --kind function
  symgraph search Client --file "internal/*" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := workspaceRoot()
		if err != nil {
			return err
		}
		return runSearch(cmd.Context(), root, mcp.SearchRequest{
			Query:    strings.Join(args, " "),
			Mode:     searchFlags.mode,
			Kind:     searchFlags.kind,
			Language: searchFlags.language,
			FilePath: searchFlags.file,
			Limit:    searchFlags.limit,
		}, searchFlags.json, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchFlags.mode, "mode", "m", mcp.ModeText, "Search mode: text, keyword or semantic")
	searchCmd.Flags().StringVarP(&searchFlags.kind, "kind", "k", "", "Filter by symbol kind")
	searchCmd.Flags().StringVarP(&searchFlags.language, "language", "l", "", "Filter by language")
	searchCmd.Flags().StringVarP(&searchFlags.file, "file", "f", "", "Filter by file path pattern")
	searchCmd.Flags().IntVarP(&searchFlags.limit, "limit", "n", 20, "Maximum results")
	searchCmd.Flags().BoolVar(&searchFlags.json, "json", false, "Output as JSON")
}

func runSearch(ctx context.Context, root string, req mcp.SearchRequest, asJSON bool, out io.Writer) error {
	ws, err := openWorkspace(ctx, root)
	if err != nil {
		return err
	}
	defer ws.Close()

	resp, err := mcp.SearchSymbols(ctx, mcp.Deps{Store: ws.store, Search: ws.engine, Embedder: ws.provider}, req)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(out, resp)
	}

	if len(resp.Results) == 0 {
		fmt.Fprintf(out, "No symbols match %q\n", req.Query)
		return nil
	}
	for _, r := range resp.Results {
		printSymbol(out, r, "")
	}
	fmt.Fprintf(out, "\n%d result(s) in %dms\n", resp.Total, resp.TookMs)
	return nil
}
