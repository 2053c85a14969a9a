// Package cli implements the symgraph command line.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	rootFlag string
	verbose  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "symgraph",
	Short: "symgraph - cross-language code intelligence",
	Long: `symgraph parses a workspace into a graph of symbols and the relationships
between them (calls, extends, implements, uses), keeps it in a local SQLite
database with full-text, vector and search engine indexes, and answers
"what is this symbol", "who calls whom" and "find code like X".

Configuration is read from .symgraph/config.yml in the workspace root and
SYMGRAPH_* environment variables.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootFlag, "root", "r", "", "workspace root (default is the current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// workspaceRoot returns the absolute workspace root from --root or the
// working directory.
func workspaceRoot() (string, error) {
	if rootFlag == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get working directory: %w", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(rootFlag)
	if err != nil {
		return "", fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("failed to open workspace root: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("workspace root %s is not a directory", abs)
	}
	return abs, nil
}
