package indexer

import "github.com/mvp-joe/symgraph/internal/resolver"

// ProgressReporter provides callbacks for reporting indexing progress.
// Implementations can display progress bars, log messages, or remain silent.
type ProgressReporter interface {
	// OnDiscoveryStart is called when file discovery begins.
	OnDiscoveryStart()

	// OnDiscoveryComplete is called with the change detection outcome.
	OnDiscoveryComplete(changes *ChangeSet)

	// OnFileProcessingStart is called before Pass 1 over changed files.
	OnFileProcessingStart(totalFiles int)

	// OnFileProcessed is called after each file is committed.
	OnFileProcessed(path string)

	// OnResolutionStart is called before the full Pass 2.
	OnResolutionStart()

	// OnResolutionComplete is called after the full Pass 2.
	OnResolutionComplete(stats *resolver.Stats)

	// OnEmbeddingStart is called before a backfill.
	OnEmbeddingStart(totalSymbols int)

	// OnEmbeddingProgress is called after each backfill batch.
	OnEmbeddingProgress(processedSymbols int)

	// OnComplete is called when indexing completes successfully.
	OnComplete(stats *Stats)
}

// NoOpProgressReporter is a progress reporter that does nothing.
// Used when progress reporting is disabled (e.g., --quiet flag).
type NoOpProgressReporter struct{}

func (n *NoOpProgressReporter) OnDiscoveryStart()                          {}
func (n *NoOpProgressReporter) OnDiscoveryComplete(changes *ChangeSet)     {}
func (n *NoOpProgressReporter) OnFileProcessingStart(totalFiles int)       {}
func (n *NoOpProgressReporter) OnFileProcessed(path string)                {}
func (n *NoOpProgressReporter) OnResolutionStart()                         {}
func (n *NoOpProgressReporter) OnResolutionComplete(stats *resolver.Stats) {}
func (n *NoOpProgressReporter) OnEmbeddingStart(totalSymbols int)          {}
func (n *NoOpProgressReporter) OnEmbeddingProgress(processedSymbols int)   {}
func (n *NoOpProgressReporter) OnComplete(stats *Stats)                    {}
