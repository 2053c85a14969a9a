package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// SerializeEmbedding encodes a vector as little-endian IEEE 754 float32s,
// four bytes per dimension.
func SerializeEmbedding(emb []float32) []byte {
	bytes := make([]byte, len(emb)*4)
	for i, f := range emb {
		binary.LittleEndian.PutUint32(bytes[i*4:], math.Float32bits(f))
	}
	return bytes
}

// DeserializeEmbedding reverses SerializeEmbedding. A length that is not a
// multiple of four means the blob is corrupt.
func DeserializeEmbedding(bytes []byte) ([]float32, error) {
	if len(bytes)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding data: length %d not divisible by 4", len(bytes))
	}

	floats := make([]float32, len(bytes)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(bytes[i*4:]))
	}
	return floats, nil
}

// encodeMetadata stores a metadata map as a JSON object; nil becomes "{}".
func encodeMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(b), nil
}

func decodeMetadata(s string) (map[string]string, error) {
	m := make(map[string]string)
	if s == "" || s == "{}" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
