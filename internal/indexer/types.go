package indexer

import (
	"time"

	"github.com/mvp-joe/symgraph/internal/resolver"
)

// EventKind is what happened to a file.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
	EventDeleted  EventKind = "deleted"
)

// Event is a change to one workspace file. Path may be absolute or
// workspace-relative.
type Event struct {
	Path string
	Kind EventKind
}

// EventResult reports what handling one event did.
type EventResult struct {
	Path string `json:"path"`

	// Unchanged is set when the stored hash already matches the file.
	Unchanged bool `json:"unchanged,omitempty"`
	// Superseded is set when a newer event for the same path took over.
	Superseded bool `json:"superseded,omitempty"`
	// Skipped is set when the file could not be read or parsed; see Warnings.
	Skipped bool `json:"skipped,omitempty"`

	Symbols       int `json:"symbols"`
	Relationships int `json:"relationships"`
	Pending       int `json:"pending"`
	Embedded      int `json:"embedded"`
	Reused        int `json:"reused"`

	Resolution *resolver.Stats `json:"resolution,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`
}

// Stats tracks statistics about a full indexing run.
type Stats struct {
	FilesDiscovered int `json:"files_discovered"`
	FilesIndexed    int `json:"files_indexed"`
	FilesUnchanged  int `json:"files_unchanged"`
	FilesDeleted    int `json:"files_deleted"`

	Symbols       int `json:"symbols"`
	Relationships int `json:"relationships"`
	Pending       int `json:"pending"`
	Embedded      int `json:"embedded"`
	Reused        int `json:"reused"`

	Resolution *resolver.Stats `json:"resolution,omitempty"`
	Warnings   []string        `json:"warnings,omitempty"`

	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

func (s *Stats) add(r *EventResult) {
	s.Warnings = append(s.Warnings, r.Warnings...)
	if r.Unchanged || r.Superseded || r.Skipped {
		return
	}
	s.FilesIndexed++
	s.Symbols += r.Symbols
	s.Relationships += r.Relationships
	s.Pending += r.Pending
	s.Embedded += r.Embedded
	s.Reused += r.Reused
}

// BackfillStats reports a Backfill run.
type BackfillStats struct {
	Embedded  int `json:"embedded"`
	Remaining int `json:"remaining"`
}

// Config contains configuration for the pipeline.
type Config struct {
	// Root directory of the workspace.
	RootDir string

	// Include patterns; empty means every extension an extractor handles.
	Include []string
	Ignore  []string

	// RespectGitignore adds the rules of the root .gitignore to Ignore.
	RespectGitignore bool

	// Workers bounds parallel Pass 1.
	Workers int

	// EmbedBatchSize is the number of texts per embedding request.
	EmbedBatchSize int

	// Debounce is the watcher's quiet period before dispatching changes.
	Debounce time.Duration
}

// DefaultIgnore lists directories no workspace wants indexed.
var DefaultIgnore = []string{
	".git/**",
	".symgraph/**",
	"node_modules/**",
	"vendor/**",
	"dist/**",
	"build/**",
	"target/**",
	"__pycache__/**",
	".venv/**",
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig(rootDir string) *Config {
	return &Config{
		RootDir:          rootDir,
		Ignore:           append([]string(nil), DefaultIgnore...),
		RespectGitignore: true,
		Workers:          4,
		EmbedBatchSize:   64,
		Debounce:         500 * time.Millisecond,
	}
}
