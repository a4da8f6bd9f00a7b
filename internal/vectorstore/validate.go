package vectorstore

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"studyrag/internal/domain"
)

// prepareBatch validates chunks for insertion under documentID and returns
// copies stamped with the document ID. IDs are generated for chunks without
// one. All vectors must share one dimension, which must equal storedDim when
// storedDim is non-zero.
func prepareBatch(chunks []domain.Chunk, documentID string, storedDim int) ([]domain.Chunk, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, &domain.ValidationError{Field: "document_id", Message: "is required"}
	}

	dim := storedDim
	out := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		if c.DocumentID != "" && c.DocumentID != documentID {
			return nil, &domain.ValidationError{
				Field:   "document_id",
				Message: fmt.Sprintf("chunk %d belongs to %q, not %q", i, c.DocumentID, documentID),
			}
		}
		if strings.TrimSpace(c.Text) == "" {
			return nil, &domain.ValidationError{Field: "text", Message: fmt.Sprintf("chunk %d is empty", i)}
		}
		if err := ValidateVector(c.Embedding); err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		if dim == 0 {
			dim = len(c.Embedding)
		}
		if len(c.Embedding) != dim {
			return nil, &domain.ValidationError{
				Field:   "embedding",
				Message: fmt.Sprintf("chunk %d has dimension %d, store uses %d", i, len(c.Embedding), dim),
			}
		}

		c.DocumentID = documentID
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		out[i] = c
	}
	return out, nil
}
