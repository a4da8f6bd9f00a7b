package vectorstore

import (
	"fmt"
	"math"

	"studyrag/internal/domain"
)

// CosineSimilarity returns dot(a,b) / (|a| * |b|). It is 0 when either vector
// has zero magnitude. Vectors of different length cannot be compared and
// yield an ErrValidation error.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, &domain.ValidationError{
			Field:   "embedding",
			Message: fmt.Sprintf("dimension mismatch: %d vs %d", len(a), len(b)),
		}
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// ValidateVector rejects empty vectors and vectors holding NaN or Inf.
func ValidateVector(vec []float32) error {
	if len(vec) == 0 {
		return &domain.ValidationError{Field: "embedding", Message: "vector is empty"}
	}
	for i, v := range vec {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return &domain.ValidationError{
				Field:   "embedding",
				Message: fmt.Sprintf("non-finite value at index %d", i),
			}
		}
	}
	return nil
}
