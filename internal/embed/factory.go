package embed

import (
	"fmt"
	"time"
)

// Provider names accepted by NewProvider.
const (
	ProviderHash = "hash"
	ProviderHTTP = "http"
)

// Config contains configuration for creating an embedding provider.
type Config struct {
	// Provider is "hash" (default) or "http".
	Provider string

	// Endpoint is the base URL of the embedding server (http provider).
	Endpoint string

	// Model names the server-side model (http provider).
	Model string

	// Dimensions is the vector length. Required for http.
	Dimensions int

	// CacheSize enables the query cache when positive.
	CacheSize int

	// Timeout bounds each HTTP request.
	Timeout time.Duration
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(config Config) (Provider, error) {
	var (
		p   Provider
		err error
	)
	switch config.Provider {
	case ProviderHash, "":
		p = newHashingProvider(config.Dimensions)
	case ProviderHTTP:
		p, err = newHTTPProvider(config.Endpoint, config.Model, config.Dimensions, config.Timeout)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s (supported: hash, http)", config.Provider)
	}

	if config.CacheSize > 0 {
		return NewCachedProvider(p, config.CacheSize)
	}
	return p, nil
}
