// Package embed turns text into vectors. The index treats embedding as a pure
// function: the same text and model always give the same vector.
package embed

import "context"

// EmbedMode specifies the type of embedding to generate.
type EmbedMode string

const (
	// EmbedModeQuery generates embeddings for search queries.
	EmbedModeQuery EmbedMode = "query"

	// EmbedModePassage generates embeddings for indexed symbol text.
	EmbedModePassage EmbedMode = "passage"
)

// Provider defines the interface for embedding text into vectors.
type Provider interface {
	// Initialize prepares the provider and blocks until ready. Must be called
	// before Embed.
	Initialize(ctx context.Context) error

	// Embed converts texts into vectors, one per text and in the same order.
	Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error)

	// Dimensions returns the length of every vector this provider produces.
	Dimensions() int

	// Model names the embedding model. Vectors from different models are
	// never mixed in one index.
	Model() string

	// Close releases any resources held by the provider.
	Close() error
}
