package embed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mvp-joe/symgraph/internal/model"
)

// DefaultHashDimensions is the vector length of the hashing provider when
// none is configured.
const DefaultHashDimensions = 256

// hashingProvider embeds text by feature hashing its identifier terms. It
// needs no model or network, and texts sharing terms land close together.
type hashingProvider struct {
	dimensions int
}

func newHashingProvider(dimensions int) *hashingProvider {
	if dimensions <= 0 {
		dimensions = DefaultHashDimensions
	}
	return &hashingProvider{dimensions: dimensions}
}

func (p *hashingProvider) Initialize(ctx context.Context) error { return nil }

// Embed hashes each term and each adjacent term pair into a signed bucket,
// then L2-normalizes. The mode does not change the result.
func (p *hashingProvider) Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.embedOne(text)
	}
	return out, nil
}

func (p *hashingProvider) embedOne(text string) []float32 {
	vec := make([]float32, p.dimensions)

	terms := model.SplitIdentifier(text)
	if len(terms) == 0 {
		// Keep the vector non-zero so cosine distance stays defined.
		p.add(vec, "\x00"+text, 1)
	}
	for i, term := range terms {
		p.add(vec, term, 1)
		if i > 0 {
			p.add(vec, terms[i-1]+" "+term, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}

func (p *hashingProvider) add(vec []float32, feature string, weight float32) {
	hash := sha256.Sum256([]byte(feature))
	bucket := binary.BigEndian.Uint32(hash[0:4]) % uint32(p.dimensions)
	if hash[4]&1 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}

func (p *hashingProvider) Dimensions() int { return p.dimensions }

func (p *hashingProvider) Model() string { return fmt.Sprintf("hash-%d", p.dimensions) }

func (p *hashingProvider) Close() error { return nil }
