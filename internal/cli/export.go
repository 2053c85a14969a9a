package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/symgraph/internal/model"
	"github.com/mvp-joe/symgraph/internal/storage"
)

var exportFlags struct {
	output string
	files  []string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the graph as flat JSON records",
	Long: `Export writes files, symbols, relationships, pending relationships and
identifiers as one JSON object per line. Each object carries record_type and
schema_version next to the record's own fields.

Examples:
  symgraph export > graph.jsonl
  symgraph export --file internal/server.go -o server.jsonl`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root, err := workspaceRoot()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if exportFlags.output != "" && exportFlags.output != "-" {
			f, err := os.Create(exportFlags.output)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			out = f
		}
		return runExport(cmd.Context(), root, exportFlags.files, out)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "Output file (default stdout)")
	exportCmd.Flags().StringSliceVarP(&exportFlags.files, "file", "f", nil, "Export only these workspace-relative files")
}

func runExport(ctx context.Context, root string, only []string, out io.Writer) error {
	ws, err := openWorkspace(ctx, root)
	if err != nil {
		return err
	}
	defer ws.Close()
	return exportRecords(ctx, ws.store, root, only, out)
}

// exportRecords writes the records of the given files, or of every file when
// only is empty. Relationships are written with the file they were found in.
func exportRecords(ctx context.Context, store *storage.Store, root string, only []string, out io.Writer) error {
	files, err := store.ListFiles(ctx)
	if err != nil {
		return err
	}
	if len(only) > 0 {
		wanted := make(map[string]bool, len(only))
		for _, p := range only {
			rel, err := model.NormalizePath(root, p)
			if err != nil {
				return err
			}
			wanted[rel] = true
		}
		var kept []*model.File
		for _, f := range files {
			if wanted[f.Path] {
				kept = append(kept, f)
			}
		}
		files = kept
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}
	byFile := make(map[string][]*model.Relationship)
	rels, err := store.ListRelationships(ctx, storage.RelationshipQuery{})
	if err != nil {
		return err
	}
	for _, r := range rels {
		byFile[r.FilePath] = append(byFile[r.FilePath], r)
	}
	pendingByFile := make(map[string][]*model.PendingRelationship)
	if len(paths) > 0 {
		pending, err := store.PendingRelationships(ctx, storage.PendingQuery{FilePaths: paths})
		if err != nil {
			return err
		}
		for i := range pending {
			p := pending[i].PendingRelationship
			pendingByFile[p.FilePath] = append(pendingByFile[p.FilePath], &p)
		}
	}

	for _, f := range files {
		records := []any{f}
		symbols, err := store.SymbolsInFile(ctx, f.Path)
		if err != nil {
			return err
		}
		for _, s := range symbols {
			records = append(records, s)
		}
		for _, r := range byFile[f.Path] {
			records = append(records, r)
		}
		for _, p := range pendingByFile[f.Path] {
			records = append(records, p)
		}
		idents, err := store.IdentifiersInFile(ctx, f.Path)
		if err != nil {
			return err
		}
		for _, id := range idents {
			records = append(records, id)
		}
		if err := model.EncodeRecords(out, records...); err != nil {
			return fmt.Errorf("failed to write records for %s: %w", f.Path, err)
		}
	}
	return nil
}
