package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. SYMGRAPH_EMBEDDING_PROVIDER.
const EnvPrefix = "SYMGRAPH"

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load loads configuration from file and environment variables.
	// Priority: defaults → config file → environment variables (env wins)
	Load() (*Config, error)
}

type loader struct {
	rootDir string
}

// NewLoader creates a new configuration loader for the given root directory.
func NewLoader(rootDir string) Loader {
	return &loader{rootDir: rootDir}
}

// Load loads configuration with the following priority (highest to lowest):
// 1. Environment variables (SYMGRAPH_*)
// 2. Config file (.symgraph/config.yml or .symgraph/config.yaml)
// 3. Default values
func (l *loader) Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(filepath.Join(l.rootDir, DirName))

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees env values for keys viper knows about; defaults
	// register every key, the explicit binds cover the ones without one.
	setDefaults(v)
	for _, key := range []string{"embedding.model", "embedding.endpoint", "paths.include"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is acceptable - we'll use defaults + env vars
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setDefaults configures viper with default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("paths.ignore", d.Paths.Ignore)
	v.SetDefault("paths.respect_gitignore", d.Paths.RespectGitignore)

	v.SetDefault("storage.database", d.Storage.Database)
	v.SetDefault("storage.vector_backend", d.Storage.VectorBackend)
	v.SetDefault("storage.vector_path", d.Storage.VectorPath)
	v.SetDefault("storage.search_index", d.Storage.SearchIndex)

	v.SetDefault("embedding.provider", d.Embedding.Provider)
	v.SetDefault("embedding.dimensions", d.Embedding.Dimensions)
	v.SetDefault("embedding.batch_size", d.Embedding.BatchSize)
	v.SetDefault("embedding.cache_size", d.Embedding.CacheSize)
	v.SetDefault("embedding.timeout_sec", d.Embedding.TimeoutSec)

	v.SetDefault("indexer.workers", d.Indexer.Workers)
	v.SetDefault("indexer.debounce_ms", d.Indexer.DebounceMs)
}

// LoadConfigFromDir loads configuration from a specific directory.
func LoadConfigFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir).Load()
}
