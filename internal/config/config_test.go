package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvp-joe/symgraph/internal/embed"
	"github.com/mvp-joe/symgraph/internal/storage"
)

// Test Plan for Config System:
// - Default() returns valid configuration with all expected defaults
// - LoadConfigFromDir() uses defaults when no config file exists
// - LoadConfigFromDir() loads from .symgraph/config.yml and .symgraph/config.yaml
// - Config file values merge with defaults
// - Environment variables override config file values and defaults
// - Malformed YAML and invalid values are errors
// - Validate() rejects each invalid field and reports all of them together
// - Conversions resolve relative paths against the workspace root

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	cfgDir := filepath.Join(dir, DirName)
	require.NoError(t, os.MkdirAll(cfgDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfgDir, name), []byte(content), 0o644))
}

func TestDefault_ReturnsValidConfiguration(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)

	assert.Equal(t, embed.ProviderHash, cfg.Embedding.Provider)
	assert.Equal(t, embed.DefaultHashDimensions, cfg.Embedding.Dimensions)
	assert.Equal(t, 64, cfg.Embedding.BatchSize)

	assert.Equal(t, storage.VectorBackendSQLiteVec, cfg.Storage.VectorBackend)
	assert.Equal(t, filepath.Join(DirName, "index.db"), cfg.Storage.Database)

	assert.Contains(t, cfg.Paths.Ignore, ".git/**")
	assert.Contains(t, cfg.Paths.Ignore, "node_modules/**")
	assert.True(t, cfg.Paths.RespectGitignore)
	assert.Empty(t, cfg.Paths.Include)

	assert.Equal(t, 4, cfg.Indexer.Workers)
	assert.Equal(t, 500, cfg.Indexer.DebounceMs)

	require.NoError(t, Validate(cfg))
}

func TestLoadConfig_UsesDefaultsWhenNoConfigFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfigFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadConfig_LoadsFromConfigYml(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yml", `
paths:
  include:
    - "src/**/*.go"
  ignore:
    - "gen/**"
  respect_gitignore: false
storage:
  vector_backend: chromem
  vector_path: vecs
embedding:
  provider: http
  endpoint: http://localhost:9000/embed
  model: test-model
  dimensions: 128
indexer:
  workers: 8
  debounce_ms: 250
`)

	cfg, err := LoadConfigFromDir(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"src/**/*.go"}, cfg.Paths.Include)
	assert.Equal(t, []string{"gen/**"}, cfg.Paths.Ignore)
	assert.False(t, cfg.Paths.RespectGitignore)
	assert.Equal(t, storage.VectorBackendChromem, cfg.Storage.VectorBackend)
	assert.Equal(t, "vecs", cfg.Storage.VectorPath)
	assert.Equal(t, embed.ProviderHTTP, cfg.Embedding.Provider)
	assert.Equal(t, "http://localhost:9000/embed", cfg.Embedding.Endpoint)
	assert.Equal(t, "test-model", cfg.Embedding.Model)
	assert.Equal(t, 128, cfg.Embedding.Dimensions)
	assert.Equal(t, 8, cfg.Indexer.Workers)
	assert.Equal(t, 250, cfg.Indexer.DebounceMs)
}

func TestLoadConfig_LoadsFromConfigYaml(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", `
embedding:
  dimensions: 64
`)

	cfg, err := LoadConfigFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Embedding.Dimensions)
}

func TestLoadConfig_MergesConfigWithDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yml", `
indexer:
  workers: 2
`)

	cfg, err := LoadConfigFromDir(dir)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Indexer.Workers)
	assert.Equal(t, 500, cfg.Indexer.DebounceMs)
	assert.Equal(t, embed.ProviderHash, cfg.Embedding.Provider)
	assert.Equal(t, Default().Paths.Ignore, cfg.Paths.Ignore)
}

func TestLoadConfig_EnvironmentVariablesOverrideConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yml", `
embedding:
  provider: hash
  dimensions: 64
indexer:
  workers: 2
`)
	t.Setenv("SYMGRAPH_EMBEDDING_PROVIDER", "http")
	t.Setenv("SYMGRAPH_EMBEDDING_ENDPOINT", "http://env:1234/embed")
	t.Setenv("SYMGRAPH_EMBEDDING_MODEL", "env-model")
	t.Setenv("SYMGRAPH_INDEXER_WORKERS", "6")

	cfg, err := LoadConfigFromDir(dir)
	require.NoError(t, err)

	assert.Equal(t, embed.ProviderHTTP, cfg.Embedding.Provider)
	assert.Equal(t, "http://env:1234/embed", cfg.Embedding.Endpoint)
	assert.Equal(t, "env-model", cfg.Embedding.Model)
	assert.Equal(t, 6, cfg.Indexer.Workers)
	assert.Equal(t, 64, cfg.Embedding.Dimensions)
}

func TestLoadConfig_EnvironmentVariablesOverrideDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SYMGRAPH_STORAGE_VECTOR_BACKEND", "chromem")
	t.Setenv("SYMGRAPH_STORAGE_DATABASE", "/tmp/other.db")

	cfg, err := LoadConfigFromDir(dir)
	require.NoError(t, err)
	assert.Equal(t, storage.VectorBackendChromem, cfg.Storage.VectorBackend)
	assert.Equal(t, "/tmp/other.db", cfg.Storage.Database)
}

func TestLoadConfig_ReturnsErrorForMalformedYaml(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yml", "embedding:\n  provider: [unclosed\n")

	_, err := LoadConfigFromDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_ReturnsErrorForInvalidValues(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yml", `
embedding:
  provider: word2vec
`)

	_, err := LoadConfigFromDir(dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidProvider)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestValidate_RejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"provider", func(c *Config) { c.Embedding.Provider = "local" }, ErrInvalidProvider},
		{"zero dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }, ErrInvalidDimensions},
		{"negative dimensions", func(c *Config) { c.Embedding.Dimensions = -8 }, ErrInvalidDimensions},
		{"http without endpoint", func(c *Config) { c.Embedding.Provider = embed.ProviderHTTP }, ErrEmptyEndpoint},
		{"batch size", func(c *Config) { c.Embedding.BatchSize = 0 }, ErrInvalidBatchSize},
		{"backend", func(c *Config) { c.Storage.VectorBackend = "faiss" }, ErrInvalidBackend},
		{"database", func(c *Config) { c.Storage.Database = " " }, ErrEmptyDatabase},
		{"workers", func(c *Config) { c.Indexer.Workers = 0 }, ErrInvalidIndexer},
		{"debounce", func(c *Config) { c.Indexer.DebounceMs = -1 }, ErrInvalidIndexer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, Validate(cfg), tt.want)
		})
	}
}

func TestValidate_AcceptsHTTPWithEndpoint(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Provider = "HTTP"
	cfg.Embedding.Endpoint = "http://localhost:8121/embed"
	assert.NoError(t, Validate(cfg))
}

func TestValidate_ReturnsMultipleErrorsForMultipleInvalidFields(t *testing.T) {
	cfg := Default()
	cfg.Embedding.Provider = "bogus"
	cfg.Embedding.Dimensions = 0
	cfg.Indexer.Workers = -1

	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidProvider)
	assert.ErrorIs(t, err, ErrInvalidDimensions)
	assert.ErrorIs(t, err, ErrInvalidIndexer)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestConfig_Conversions(t *testing.T) {
	root := t.TempDir()
	cfg := Default()
	cfg.Paths.Include = []string{"**/*.py"}
	cfg.Storage.VectorBackend = storage.VectorBackendChromem
	cfg.Storage.SearchIndex = ""

	ic := cfg.ToIndexerConfig(root)
	assert.Equal(t, root, ic.RootDir)
	assert.Equal(t, []string{"**/*.py"}, ic.Include)
	assert.Equal(t, 500*time.Millisecond, ic.Debounce)
	assert.Equal(t, 64, ic.EmbedBatchSize)

	ec := cfg.ToEmbedConfig()
	assert.Equal(t, embed.ProviderHash, ec.Provider)
	assert.Equal(t, 30*time.Second, ec.Timeout)

	so := cfg.ToStoreOptions(root)
	assert.Equal(t, filepath.Join(root, DirName, "vectors"), so.VectorPath)
	assert.Equal(t, embed.DefaultHashDimensions, so.Dimensions)

	assert.Equal(t, filepath.Join(root, DirName, "index.db"), cfg.DatabasePath(root))
	assert.Equal(t, "", cfg.SearchIndexPath(root))
	assert.Equal(t, "/abs/db", (&Config{Storage: StorageConfig{Database: "/abs/db"}}).DatabasePath(root))
}
