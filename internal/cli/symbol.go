package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/symgraph/internal/mcp"
	"github.com/mvp-joe/symgraph/internal/model"
	"github.com/mvp-joe/symgraph/internal/storage"
)

var symbolFlags struct {
	kind string
	file string
	json bool
}

var symbolCmd = &cobra.Command{
	Use:   "symbol <name-or-id>",
	Short: "Show symbol definitions",
	Long: `Symbol prints every definition with the given exact name (or the one symbol
with the given id): location, signature and doc comment.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := workspaceRoot()
		if err != nil {
			return err
		}
		return runSymbol(cmd.Context(), root, args[0], symbolFlags.kind, symbolFlags.file, symbolFlags.json, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(symbolCmd)
	symbolCmd.Flags().StringVarP(&symbolFlags.kind, "kind", "k", "", "Filter by symbol kind")
	symbolCmd.Flags().StringVarP(&symbolFlags.file, "file", "f", "", "Filter by workspace-relative file path")
	symbolCmd.Flags().BoolVar(&symbolFlags.json, "json", false, "Output as JSON")
}

func runSymbol(ctx context.Context, root, target, kind, file string, asJSON bool, out io.Writer) error {
	ws, err := openWorkspace(ctx, root)
	if err != nil {
		return err
	}
	defer ws.Close()

	var symbols []*model.Symbol
	if sym, err := ws.store.GetSymbol(ctx, target); err == nil {
		symbols = append(symbols, sym)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	} else {
		q := storage.SymbolQuery{Name: target, FilePath: file}
		if kind != "" {
			if q.Kind, err = model.ParseSymbolKind(kind); err != nil {
				return err
			}
		}
		if symbols, err = ws.store.FindSymbols(ctx, q); err != nil {
			return err
		}
	}

	if asJSON {
		if symbols == nil {
			symbols = []*model.Symbol{}
		}
		return printJSON(out, symbols)
	}
	if len(symbols) == 0 {
		return fmt.Errorf("symbol %q: %w", target, storage.ErrNotFound)
	}
	for _, s := range symbols {
		fmt.Fprintf(out, "%s %s\n", nameColor.Sprint(s.Name), kindColor.Sprint(s.Kind))
		fmt.Fprintf(out, "  id:       %s\n", s.ID)
		fmt.Fprintf(out, "  location: %s:%d-%d (%s)\n", s.FilePath, s.StartLine, s.EndLine, s.Language)
		if s.Signature != "" {
			fmt.Fprintf(out, "  signature: %s\n", s.Signature)
		}
		if s.DocComment != "" {
			fmt.Fprintf(out, "  doc:      %s\n", s.DocComment)
		}
		if s.Visibility != "" && s.Visibility != model.VisibilityPublic {
			fmt.Fprintf(out, "  visibility: %s\n", s.Visibility)
		}
	}
	return nil
}

var refsFlags struct {
	direction string
	kind      string
	limit     int
	json      bool
}

var refsCmd = &cobra.Command{
	Use:   "refs <name-or-id>",
	Short: "List relationships touching a symbol",
	Long: `Refs lists resolved calls, extends, implements and uses edges into and out of
a symbol, including edges that cross files and languages.

Examples:
  symgraph refs ParseFile
  symgraph refs Shape --direction incoming --kind implements`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := workspaceRoot()
		if err != nil {
			return err
		}
		return runRefs(cmd.Context(), root, mcp.ReferencesRequest{
			Target:    args[0],
			Direction: refsFlags.direction,
			Kind:      refsFlags.kind,
			Limit:     refsFlags.limit,
		}, refsFlags.json, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(refsCmd)
	refsCmd.Flags().StringVarP(&refsFlags.direction, "direction", "d", "both", "incoming, outgoing or both")
	refsCmd.Flags().StringVarP(&refsFlags.kind, "kind", "k", "", "Filter by relationship kind")
	refsCmd.Flags().IntVarP(&refsFlags.limit, "limit", "n", 100, "Maximum references per symbol")
	refsCmd.Flags().BoolVar(&refsFlags.json, "json", false, "Output as JSON")
}

func runRefs(ctx context.Context, root string, req mcp.ReferencesRequest, asJSON bool, out io.Writer) error {
	ws, err := openWorkspace(ctx, root)
	if err != nil {
		return err
	}
	defer ws.Close()

	resp, err := mcp.FindReferences(ctx, ws.store, req)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(out, resp)
	}

	for _, t := range resp.Targets {
		printSymbol(out, t, "")
		n := 0
		for _, ref := range resp.References {
			if ref.TargetID != t.ID {
				continue
			}
			n++
			arrow := "->"
			if ref.Direction == model.DirectionIncoming {
				arrow = "<-"
			}
			other := "(unknown)"
			if ref.Symbol != nil {
				other = fmt.Sprintf("%s %s", nameColor.Sprint(ref.Symbol.Name), kindColor.Sprint(ref.Symbol.Kind))
			}
			fmt.Fprintf(out, "  %s %-10s %s  %s\n", arrow, ref.Kind, other, pathColor.Sprintf("%s:%d", ref.FilePath, ref.Line))
		}
		if n == 0 {
			fmt.Fprintln(out, "  (no relationships)")
		}
	}
	return nil
}

var outlineFlags struct {
	depth  int
	target string
	json   bool
}

var outlineCmd = &cobra.Command{
	Use:   "outline <file>",
	Short: "Show the symbol tree of a file",
	Long: `Outline prints the classes, functions and members a file defines, nested
under their parents, without printing the file itself.

Examples:
  symgraph outline src/user.py
  symgraph outline src/user.py --depth 0
  symgraph outline src/user.py --target save`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := workspaceRoot()
		if err != nil {
			return err
		}
		return runOutline(cmd.Context(), root, mcp.OutlineRequest{
			FilePath: args[0],
			MaxDepth: &outlineFlags.depth,
			Target:   outlineFlags.target,
		}, outlineFlags.json, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(outlineCmd)
	outlineCmd.Flags().IntVarP(&outlineFlags.depth, "depth", "d", mcp.DefaultOutlineDepth, "Nesting levels below top-level symbols to show")
	outlineCmd.Flags().StringVarP(&outlineFlags.target, "target", "t", "", "Show only top-level symbols containing a matching name")
	outlineCmd.Flags().BoolVar(&outlineFlags.json, "json", false, "Output as JSON")
}

func runOutline(ctx context.Context, root string, req mcp.OutlineRequest, asJSON bool, out io.Writer) error {
	if filepath.IsAbs(req.FilePath) {
		rel, err := model.NormalizePath(root, req.FilePath)
		if err != nil {
			return err
		}
		req.FilePath = rel
	}

	ws, err := openWorkspace(ctx, root)
	if err != nil {
		return err
	}
	defer ws.Close()

	resp, err := mcp.FileOutline(ctx, ws.store, req)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(out, resp)
	}

	fmt.Fprintf(out, "%s (%d symbols, %d top-level)\n", pathColor.Sprint(resp.FilePath), resp.Total, resp.TopLevel)
	for _, n := range resp.Symbols {
		printOutlineNode(out, n, "  ")
	}
	return nil
}

func printOutlineNode(out io.Writer, n *mcp.OutlineNode, indent string) {
	line := fmt.Sprintf("%s%s %s :%d", indent, nameColor.Sprint(n.Name), kindColor.Sprint(n.Kind), n.StartLine)
	if n.Visibility != "" {
		line += fmt.Sprintf(" [%s]", n.Visibility)
	}
	fmt.Fprintln(out, line)
	for _, c := range n.Children {
		printOutlineNode(out, c, indent+"  ")
	}
	if n.Hidden > 0 {
		fmt.Fprintf(out, "%s  ... %d more nested\n", indent, n.Hidden)
	}
}
