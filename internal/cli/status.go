package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/symgraph/internal/mcp"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show what the index holds",
	Long: `Status prints table counts, embedding coverage and symbol counts per language
and kind. Opening the index also verifies the derived indexes and rebuilds any
that drifted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := workspaceRoot()
		if err != nil {
			return err
		}
		return runStatus(cmd.Context(), root, statusJSON, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
}

func runStatus(ctx context.Context, root string, asJSON bool, out io.Writer) error {
	ws, err := openWorkspace(ctx, root)
	if err != nil {
		return err
	}
	defer ws.Close()

	st, err := mcp.BuildStatus(ctx, ws.store)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(out, st)
	}

	fmt.Fprintf(out, "Workspace:     %s\n", root)
	fmt.Fprintf(out, "Workspace ID:  %s\n", st.WorkspaceID)
	if st.LastIndexed != nil {
		fmt.Fprintf(out, "Last indexed:  %s (%s ago)\n",
			st.LastIndexed.Local().Format(time.DateTime), time.Since(*st.LastIndexed).Round(time.Second))
	} else {
		fmt.Fprintf(out, "Last indexed:  %s\n", warnMark+" never")
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Files:         %s\n", formatNumber(st.Files))
	fmt.Fprintf(out, "Symbols:       %s\n", formatNumber(st.Symbols))
	fmt.Fprintf(out, "Relationships: %s\n", formatNumber(st.Relationships))
	fmt.Fprintf(out, "Pending:       %s (%s unresolved)\n", formatNumber(st.Pending), formatNumber(st.Unresolved))
	fmt.Fprintf(out, "Identifiers:   %s\n", formatNumber(st.Identifiers))

	mark := okMark
	if st.Unembedded > 0 || st.Embeddings != st.Vectors {
		mark = warnMark
	}
	fmt.Fprintf(out, "Embeddings:    %s %s stored, %s indexed, %s missing\n", mark,
		formatNumber(st.Embeddings), formatNumber(st.Vectors), formatNumber(st.Unembedded))

	printCounts(out, "By language", st.ByLanguage)
	printCounts(out, "By kind", st.ByKind)
	return nil
}

// printCounts prints a count map largest first.
func printCounts(out io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	fmt.Fprintf(out, "\n%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(out, "  %-14s %s\n", k, formatNumber(counts[k]))
	}
}
