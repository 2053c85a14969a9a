package storage

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for column encoding:
// - Embeddings round-trip through little-endian float32 blobs, including NaN and infinities
// - Blobs whose length is not a multiple of four are rejected
// - Metadata maps round-trip as JSON; nil and empty maps store as "{}"
// - Corrupt metadata is an error
// - nullable maps "" to NULL

func TestEmbedding_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		embedding []float32
	}{
		{"small", []float32{1.234, -5.678, 0.0, 999.999, -0.001}},
		{"wide", sequence(384)},
		{"empty", []float32{}},
		{"special", []float32{float32(math.Inf(1)), float32(math.Inf(-1)), 1.23e-38}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			blob := SerializeEmbedding(tt.embedding)
			assert.Len(t, blob, len(tt.embedding)*4)

			got, err := DeserializeEmbedding(blob)
			require.NoError(t, err)
			assert.Equal(t, tt.embedding, got)
		})
	}
}

func TestEmbedding_NaN(t *testing.T) {
	t.Parallel()
	got, err := DeserializeEmbedding(SerializeEmbedding([]float32{float32(math.NaN())}))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, math.IsNaN(float64(got[0])))
}

func TestEmbedding_LittleEndian(t *testing.T) {
	t.Parallel()
	blob := SerializeEmbedding([]float32{1.0})
	assert.Equal(t, math.Float32bits(1.0), binary.LittleEndian.Uint32(blob))
}

func TestEmbedding_InvalidLength(t *testing.T) {
	t.Parallel()
	for _, n := range []int{1, 3, 5, 386} {
		_, err := DeserializeEmbedding(make([]byte, n))
		assert.Error(t, err, "length %d", n)
	}
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	s, err := encodeMetadata(nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", s)

	s, err = encodeMetadata(map[string]string{"resolved_from": "helper"})
	require.NoError(t, err)
	m, err := decodeMetadata(s)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"resolved_from": "helper"}, m)

	m, err = decodeMetadata("")
	require.NoError(t, err)
	assert.Empty(t, m)

	_, err = decodeMetadata("{not json")
	assert.Error(t, err)
}

func TestNullable(t *testing.T) {
	t.Parallel()
	assert.Nil(t, nullable(""))
	assert.Equal(t, "x", nullable("x"))
	assert.Equal(t, 1, boolToInt(true))
	assert.Equal(t, 0, boolToInt(false))
}

func sequence(dim int) []float32 {
	out := make([]float32, dim)
	for i := range out {
		out[i] = float32(i) * 0.01
	}
	return out
}
