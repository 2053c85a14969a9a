package cli

import (
	"fmt"
	"io"
	"log"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/mvp-joe/symgraph/internal/indexer"
	"github.com/mvp-joe/symgraph/internal/resolver"
)

var (
	okMark   = color.New(color.FgGreen).Sprint("✓")
	warnMark = color.New(color.FgYellow).Sprint("!")
)

// CLIProgressReporter implements progress reporting with progress bars.
type CLIProgressReporter struct {
	quiet               bool
	out                 io.Writer
	fileBar             *progressbar.ProgressBar
	embeddingBar        *progressbar.ProgressBar
	startTime           time.Time
	processedEmbeddings int
}

// NewCLIProgressReporter creates a new CLI progress reporter.
func NewCLIProgressReporter(out io.Writer, quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{
		quiet:     quiet,
		out:       out,
		startTime: time.Now(),
	}
}

func (c *CLIProgressReporter) newBar(total int, description, unit string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString(unit),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(c.out)
		}),
	)
}

func (c *CLIProgressReporter) OnDiscoveryStart() {
	if c.quiet {
		return
	}
	log.Println("Discovering files...")
}

func (c *CLIProgressReporter) OnDiscoveryComplete(changes *indexer.ChangeSet) {
	if c.quiet {
		return
	}
	log.Printf("%d added, %d modified, %d deleted, %d unchanged",
		len(changes.Added), len(changes.Modified), len(changes.Deleted), len(changes.Unchanged))
}

func (c *CLIProgressReporter) OnFileProcessingStart(totalFiles int) {
	if c.quiet || totalFiles == 0 {
		return
	}
	c.fileBar = c.newBar(totalFiles, "Indexing files", "files/s")
}

func (c *CLIProgressReporter) OnFileProcessed(path string) {
	if c.quiet {
		return
	}
	if c.fileBar != nil {
		c.fileBar.Add(1)
	}
}

func (c *CLIProgressReporter) OnResolutionStart() {
	if c.quiet {
		return
	}
	if c.fileBar != nil {
		c.fileBar.Finish()
		c.fileBar = nil
	}
	log.Println("Resolving cross-file relationships...")
}

func (c *CLIProgressReporter) OnResolutionComplete(stats *resolver.Stats) {
	if c.quiet || stats == nil {
		return
	}
	fmt.Fprintf(c.out, "%s Resolved %s of %s pending relationships\n",
		okMark, formatNumber(stats.Resolved), formatNumber(stats.Considered))
}

func (c *CLIProgressReporter) OnEmbeddingStart(totalSymbols int) {
	if c.quiet || totalSymbols == 0 {
		return
	}
	c.processedEmbeddings = 0
	c.embeddingBar = c.newBar(totalSymbols, "Generating embeddings", "emb/s")
}

func (c *CLIProgressReporter) OnEmbeddingProgress(processedSymbols int) {
	if c.quiet {
		return
	}
	if c.embeddingBar != nil {
		delta := processedSymbols - c.processedEmbeddings
		if delta > 0 {
			c.embeddingBar.Add(delta)
			c.processedEmbeddings = processedSymbols
		}
	}
}

func (c *CLIProgressReporter) OnComplete(stats *indexer.Stats) {
	if c.quiet {
		return
	}

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "%s Indexing complete: %s files in %.1fs\n",
		okMark, formatNumber(stats.FilesIndexed), stats.ProcessingTimeSeconds)
	fmt.Fprintf(c.out, "  Symbols:       %s\n", formatNumber(stats.Symbols))
	fmt.Fprintf(c.out, "  Relationships: %s\n", formatNumber(stats.Relationships))
	fmt.Fprintf(c.out, "  Embedded:      %s (%s reused)\n", formatNumber(stats.Embedded), formatNumber(stats.Reused))
	if stats.FilesDeleted > 0 {
		fmt.Fprintf(c.out, "  Deleted files: %s\n", formatNumber(stats.FilesDeleted))
	}
	for _, w := range stats.Warnings {
		fmt.Fprintf(c.out, "%s %s\n", warnMark, w)
	}
}

// formatNumber adds thousands separators.
func formatNumber(n int) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	str := fmt.Sprintf("%d", n)
	var result []byte
	for i := range len(str) {
		if i > 0 && (len(str)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, str[i])
	}
	return string(result)
}
