// Package vectorstore persists embedded chunks and ranks them by cosine
// similarity to a query vector.
package vectorstore

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_store.go -package=mocks studyrag/internal/vectorstore Store

import (
	"context"
	"sort"

	"studyrag/internal/domain"
)

// SearchOptions narrows a search. The zero value returns every chunk of every
// document, ranked.
type SearchOptions struct {
	// TopK caps the number of results. Zero or negative means no cap.
	TopK int
	// Threshold drops results scoring below it when set.
	Threshold *float64
	// DocumentID scopes the search to one document when set.
	DocumentID string
}

// Store defines the interface for vector storage operations. An empty
// documentID addresses every document.
type Store interface {
	// Clear deletes the chunks of one document, or all chunks, and returns
	// how many were deleted.
	Clear(ctx context.Context, documentID string) (int, error)
	// InsertBatch stores chunks with their embeddings under documentID.
	// The batch is written atomically; invalid chunks fail the whole batch.
	InsertBatch(ctx context.Context, chunks []domain.Chunk, documentID string) (int, error)
	// Search ranks stored chunks by cosine similarity to query, highest first,
	// ties in insertion order. An empty store or a malformed query yields an
	// empty result, not an error.
	Search(ctx context.Context, query []float32, opts SearchOptions) ([]domain.SearchResult, error)
	// Count returns the number of stored chunks.
	Count(ctx context.Context, documentID string) (int, error)
	// ListChunks returns stored chunks in insertion order, without embeddings.
	ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)
}

// rank sorts results by descending score, keeping the existing order among
// equal scores, then applies the threshold and top-k cap.
func rank(results []domain.SearchResult, opts SearchOptions) []domain.SearchResult {
	if opts.Threshold != nil {
		kept := results[:0]
		for _, r := range results {
			if r.Score >= *opts.Threshold {
				kept = append(kept, r)
			}
		}
		results = kept
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if opts.TopK > 0 && len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results
}
