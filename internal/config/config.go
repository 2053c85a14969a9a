package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/mvp-joe/symgraph/internal/embed"
	"github.com/mvp-joe/symgraph/internal/indexer"
	"github.com/mvp-joe/symgraph/internal/storage"
)

// DirName is the per-workspace directory holding config and index files.
const DirName = ".symgraph"

// Config represents the complete symgraph configuration.
// It can be loaded from .symgraph/config.yml with environment variable overrides.
type Config struct {
	Paths     PathsConfig     `yaml:"paths" mapstructure:"paths"`
	Storage   StorageConfig   `yaml:"storage" mapstructure:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`
	Indexer   IndexerConfig   `yaml:"indexer" mapstructure:"indexer"`
}

// PathsConfig defines which files to index and which to ignore.
type PathsConfig struct {
	Include          []string `yaml:"include" mapstructure:"include"` // empty: every supported extension
	Ignore           []string `yaml:"ignore" mapstructure:"ignore"`
	RespectGitignore bool     `yaml:"respect_gitignore" mapstructure:"respect_gitignore"`
}

// StorageConfig locates the database and the derived indexes. Relative paths
// are resolved against the workspace root.
type StorageConfig struct {
	Database      string `yaml:"database" mapstructure:"database"`
	VectorBackend string `yaml:"vector_backend" mapstructure:"vector_backend"` // "sqlite-vec" or "chromem"
	VectorPath    string `yaml:"vector_path" mapstructure:"vector_path"`       // chromem persistence dir
	SearchIndex   string `yaml:"search_index" mapstructure:"search_index"`     // bleve index dir; empty keeps it in memory
}

// EmbeddingConfig configures the embedding provider.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider" mapstructure:"provider"` // "hash" or "http"
	Model      string `yaml:"model" mapstructure:"model"`
	Dimensions int    `yaml:"dimensions" mapstructure:"dimensions"`
	Endpoint   string `yaml:"endpoint" mapstructure:"endpoint"`
	BatchSize  int    `yaml:"batch_size" mapstructure:"batch_size"`
	CacheSize  int    `yaml:"cache_size" mapstructure:"cache_size"` // query embedding cache entries; 0 disables
	TimeoutSec int    `yaml:"timeout_sec" mapstructure:"timeout_sec"`
}

// IndexerConfig tunes the pipeline and the watcher.
type IndexerConfig struct {
	Workers    int `yaml:"workers" mapstructure:"workers"`
	DebounceMs int `yaml:"debounce_ms" mapstructure:"debounce_ms"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			Ignore:           append([]string(nil), indexer.DefaultIgnore...),
			RespectGitignore: true,
		},
		Storage: StorageConfig{
			Database:      filepath.Join(DirName, "index.db"),
			VectorBackend: storage.VectorBackendSQLiteVec,
			VectorPath:    filepath.Join(DirName, "vectors"),
			SearchIndex:   filepath.Join(DirName, "search.bleve"),
		},
		Embedding: EmbeddingConfig{
			Provider:   embed.ProviderHash,
			Dimensions: embed.DefaultHashDimensions,
			BatchSize:  64,
			CacheSize:  1024,
			TimeoutSec: 30,
		},
		Indexer: IndexerConfig{
			Workers:    4,
			DebounceMs: 500,
		},
	}
}

// ToIndexerConfig converts a Config to an indexer.Config.
func (c *Config) ToIndexerConfig(rootDir string) *indexer.Config {
	return &indexer.Config{
		RootDir:          rootDir,
		Include:          c.Paths.Include,
		Ignore:           c.Paths.Ignore,
		RespectGitignore: c.Paths.RespectGitignore,
		Workers:          c.Indexer.Workers,
		EmbedBatchSize:   c.Embedding.BatchSize,
		Debounce:         time.Duration(c.Indexer.DebounceMs) * time.Millisecond,
	}
}

// ToEmbedConfig converts the embedding section to an embed.Config.
func (c *Config) ToEmbedConfig() embed.Config {
	return embed.Config{
		Provider:   strings.ToLower(c.Embedding.Provider),
		Endpoint:   c.Embedding.Endpoint,
		Model:      c.Embedding.Model,
		Dimensions: c.Embedding.Dimensions,
		CacheSize:  c.Embedding.CacheSize,
		Timeout:    time.Duration(c.Embedding.TimeoutSec) * time.Second,
	}
}

// ToStoreOptions converts the storage section to storage.Options. The
// embedding model is left for the caller, who knows the provider.
func (c *Config) ToStoreOptions(rootDir string) storage.Options {
	opts := storage.Options{
		WorkspaceRoot:  rootDir,
		Dimensions:     c.Embedding.Dimensions,
		EmbeddingModel: c.Embedding.Model,
		VectorBackend:  c.Storage.VectorBackend,
	}
	if c.Storage.VectorBackend == storage.VectorBackendChromem {
		opts.VectorPath = resolve(rootDir, c.Storage.VectorPath)
	}
	return opts
}

// DatabasePath returns the absolute database path for a workspace.
func (c *Config) DatabasePath(rootDir string) string {
	return resolve(rootDir, c.Storage.Database)
}

// SearchIndexPath returns the absolute bleve index path, "" for in-memory.
func (c *Config) SearchIndexPath(rootDir string) string {
	return resolve(rootDir, c.Storage.SearchIndex)
}

func resolve(rootDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(rootDir, p)
}
