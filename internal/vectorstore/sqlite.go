package vectorstore

import (
	"context"
	"sync"

	"studyrag/internal/contextutil"
	"studyrag/internal/domain"
	"studyrag/internal/storage"
)

// SQLiteStore is a brute-force Store over the chunks table. Search scans
// every stored embedding of the requested scope.
//
// Writes are serialized by a mutex so a Clear never interleaves with another
// document's InsertBatch. Searches take no lock and read the last committed
// state (the database runs in WAL mode).
type SQLiteStore struct {
	chunks  storage.ChunkStore
	writeMu sync.Mutex
}

// NewSQLiteStore creates a Store backed by the chunk repository.
func NewSQLiteStore(chunks storage.ChunkStore) *SQLiteStore {
	return &SQLiteStore{chunks: chunks}
}

// Clear deletes the chunks of documentID, or all chunks.
func (s *SQLiteStore) Clear(ctx context.Context, documentID string) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	n, err := s.chunks.Delete(ctx, documentID)
	if err != nil {
		return 0, err
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "cleared chunks", "document_id", documentID, "count", n)
	return n, nil
}

// InsertBatch validates and stores chunks in one transaction.
func (s *SQLiteStore) InsertBatch(ctx context.Context, chunks []domain.Chunk, documentID string) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	dim, err := s.chunks.Dimension(ctx)
	if err != nil {
		return 0, err
	}
	prepared, err := prepareBatch(chunks, documentID, dim)
	if err != nil {
		return 0, err
	}

	if err := s.chunks.InsertBatch(ctx, prepared); err != nil {
		return 0, err
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "inserted chunks", "document_id", documentID, "count", len(prepared))
	return len(prepared), nil
}

// Search scores every stored chunk in scope against query.
func (s *SQLiteStore) Search(ctx context.Context, query []float32, opts SearchOptions) ([]domain.SearchResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if err := ValidateVector(query); err != nil {
		logger.WarnContext(ctx, "ignoring malformed query vector", "error", err)
		return []domain.SearchResult{}, nil
	}

	results := []domain.SearchResult{}
	skipped := 0
	err := s.chunks.Scan(ctx, opts.DocumentID, func(c domain.Chunk) error {
		score, err := CosineSimilarity(query, c.Embedding)
		if err != nil {
			skipped++
			return nil
		}
		c.Embedding = nil
		results = append(results, domain.SearchResult{Chunk: c, Score: score})
		return nil
	})
	if err != nil {
		return nil, err
	}

	if skipped > 0 {
		logger.WarnContext(ctx, "skipped chunks with mismatched dimension",
			"count", skipped,
			"query_dimension", len(query),
		)
	}
	return rank(results, opts), nil
}

// Count returns the number of stored chunks in scope.
func (s *SQLiteStore) Count(ctx context.Context, documentID string) (int, error) {
	return s.chunks.Count(ctx, documentID)
}

// ListChunks returns stored chunks in insertion order.
func (s *SQLiteStore) ListChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	chunks, err := s.chunks.List(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if chunks == nil {
		chunks = []domain.Chunk{}
	}
	return chunks, nil
}
