package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mvp-joe/symgraph/internal/embed"
	"github.com/mvp-joe/symgraph/internal/storage"
)

var (
	// ErrInvalidProvider indicates an unsupported embedding provider
	ErrInvalidProvider = errors.New("invalid embedding provider")

	// ErrInvalidDimensions indicates invalid embedding dimensions
	ErrInvalidDimensions = errors.New("invalid embedding dimensions")

	// ErrEmptyEndpoint indicates missing embedding endpoint
	ErrEmptyEndpoint = errors.New("empty embedding endpoint")

	// ErrInvalidBatchSize indicates an invalid embedding batch size
	ErrInvalidBatchSize = errors.New("invalid batch size")

	// ErrInvalidBackend indicates an unsupported vector backend
	ErrInvalidBackend = errors.New("invalid vector backend")

	// ErrEmptyDatabase indicates a missing database path
	ErrEmptyDatabase = errors.New("empty database path")

	// ErrInvalidIndexer indicates invalid worker or debounce settings
	ErrInvalidIndexer = errors.New("invalid indexer settings")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateEmbedding(&cfg.Embedding)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateIndexer(&cfg.Indexer)...)

	return joinErrors(errs)
}

func validateEmbedding(cfg *EmbeddingConfig) []error {
	var errs []error

	switch strings.ToLower(cfg.Provider) {
	case embed.ProviderHash:
	case embed.ProviderHTTP:
		if strings.TrimSpace(cfg.Endpoint) == "" {
			errs = append(errs, fmt.Errorf("%w: endpoint is required for the http provider", ErrEmptyEndpoint))
		}
	default:
		errs = append(errs, fmt.Errorf("%w: must be 'hash' or 'http', got '%s'", ErrInvalidProvider, cfg.Provider))
	}

	if cfg.Dimensions <= 0 {
		errs = append(errs, fmt.Errorf("%w: dimensions must be positive, got %d", ErrInvalidDimensions, cfg.Dimensions))
	}
	if cfg.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: batch_size must be positive, got %d", ErrInvalidBatchSize, cfg.BatchSize))
	}
	if cfg.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("cache_size cannot be negative, got %d", cfg.CacheSize))
	}
	return errs
}

func validateStorage(cfg *StorageConfig) []error {
	var errs []error
	if strings.TrimSpace(cfg.Database) == "" {
		errs = append(errs, fmt.Errorf("%w: storage.database is required", ErrEmptyDatabase))
	}
	switch cfg.VectorBackend {
	case storage.VectorBackendSQLiteVec, storage.VectorBackendChromem:
	default:
		errs = append(errs, fmt.Errorf("%w: must be '%s' or '%s', got '%s'",
			ErrInvalidBackend, storage.VectorBackendSQLiteVec, storage.VectorBackendChromem, cfg.VectorBackend))
	}
	return errs
}

func validateIndexer(cfg *IndexerConfig) []error {
	var errs []error
	if cfg.Workers <= 0 {
		errs = append(errs, fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidIndexer, cfg.Workers))
	}
	if cfg.DebounceMs < 0 {
		errs = append(errs, fmt.Errorf("%w: debounce_ms cannot be negative, got %d", ErrInvalidIndexer, cfg.DebounceMs))
	}
	return errs
}

// joinErrors combines multiple errors into a single error with clear
// formatting. The result still matches each sentinel with errors.Is.
func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return &validationError{errs: errs}
}

type validationError struct {
	errs []error
}

func (e *validationError) Error() string {
	msgs := make([]string, len(e.errs))
	for i, err := range e.errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

func (e *validationError) Unwrap() []error { return e.errs }
