package storage

import (
	"encoding/json"
	"fmt"
)

// EncodeEmbedding serializes a vector as a JSON array of numbers.
func EncodeEmbedding(vec []float32) (string, error) {
	b, err := json.Marshal(vec)
	if err != nil {
		return "", fmt.Errorf("failed to encode embedding: %w", err)
	}
	return string(b), nil
}

// DecodeEmbedding parses a vector written by EncodeEmbedding.
func DecodeEmbedding(s string) ([]float32, error) {
	var vec []float32
	if err := json.Unmarshal([]byte(s), &vec); err != nil {
		return nil, fmt.Errorf("failed to decode embedding: %w", err)
	}
	return vec, nil
}
