package embed

import (
	"context"
	"fmt"

	"github.com/maypok86/otter"
)

// CachedProvider memoizes query embeddings. Searches repeat the same short
// queries; passage embeddings are stored in the index and are not cached.
type CachedProvider struct {
	Provider
	cache otter.Cache[string, []float32]
}

// NewCachedProvider wraps p with a query cache holding up to size entries.
func NewCachedProvider(p Provider, size int) (*CachedProvider, error) {
	cache, err := otter.MustBuilder[string, []float32](size).
		CollectStats().
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	return &CachedProvider{Provider: p, cache: cache}, nil
}

// Embed serves cached query vectors and embeds only the misses, in one call.
func (c *CachedProvider) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	if mode != EmbedModeQuery {
		return c.Provider.Embed(ctx, texts, mode)
	}

	out := make([][]float32, len(texts))
	var (
		missTexts []string
		missIdx   []int
	)
	for i, text := range texts {
		if v, ok := c.cache.Get(text); ok {
			out[i] = v
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.Provider.Embed(ctx, missTexts, mode)
	if err != nil {
		return nil, err
	}
	for j, v := range vecs {
		out[missIdx[j]] = v
		c.cache.Set(missTexts[j], v)
	}
	return out, nil
}

// HitRatio reports the share of query lookups served from the cache.
func (c *CachedProvider) HitRatio() float64 {
	return c.cache.Stats().Ratio()
}

// Close closes the cache and the wrapped provider.
func (c *CachedProvider) Close() error {
	c.cache.Close()
	return c.Provider.Close()
}
