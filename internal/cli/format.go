package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/mvp-joe/symgraph/internal/mcp"
)

var (
	nameColor = color.New(color.Bold)
	kindColor = color.New(color.FgCyan)
	pathColor = color.New(color.FgHiBlack)
)

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printSymbol writes one symbol as "name  kind  file:line" with its
// signature indented below.
func printSymbol(out io.Writer, s mcp.SymbolResult, indent string) {
	fmt.Fprintf(out, "%s%s  %s  %s\n", indent,
		nameColor.Sprint(s.Name), kindColor.Sprint(s.Kind), pathColor.Sprintf("%s:%d", s.FilePath, s.StartLine))
	if s.Signature != "" {
		fmt.Fprintf(out, "%s    %s\n", indent, s.Signature)
	}
}
