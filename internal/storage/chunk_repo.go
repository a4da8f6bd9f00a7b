package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks studyrag/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"studyrag/internal/domain"
)

// ChunkStore defines the interface for chunk storage operations.
// An empty documentID means all documents.
type ChunkStore interface {
	// InsertBatch inserts chunks in a single transaction. Either every chunk
	// is stored or none is.
	InsertBatch(ctx context.Context, chunks []domain.Chunk) error
	// Delete removes the chunks of one document, or all chunks, and returns
	// the number removed.
	Delete(ctx context.Context, documentID string) (int, error)
	// Count returns the number of stored chunks.
	Count(ctx context.Context, documentID string) (int, error)
	// List returns chunks without embeddings in insertion order.
	List(ctx context.Context, documentID string) ([]domain.Chunk, error)
	// Scan calls fn for every chunk, embedding included, in insertion order.
	// Iteration stops at the first error fn returns.
	Scan(ctx context.Context, documentID string, fn func(domain.Chunk) error) error
	// GetByIDs returns the chunks with the given IDs, keyed by ID, without embeddings.
	GetByIDs(ctx context.Context, ids []string) (map[string]domain.Chunk, error)
	// Dimension returns the embedding dimension of stored chunks, or 0 if there are none.
	Dimension(ctx context.Context) (int, error)
}

// ChunkRepo provides methods for chunk operations.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// InsertBatch inserts chunks in a single transaction.
// Chunk IDs must be set before calling this method.
func (r *ChunkRepo) InsertBatch(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", domain.ErrStore, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO chunks ("+chunkColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("%w: failed to prepare insert: %v", domain.ErrStore, err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	now := time.Now().UTC()
	for _, c := range chunks {
		emb, err := EncodeEmbedding(c.Embedding)
		if err != nil {
			return err
		}
		created := c.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, c.DocumentID, c.Index, c.Text, emb, len(c.Embedding),
			nullInt(c.PageNumber), nullString(c.SectionTitle), nullString(string(c.SectionLevel)),
			created.UTC().Format(timeLayout),
		); err != nil {
			return fmt.Errorf("%w: failed to insert chunk %s: %v", domain.ErrStore, c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit chunks: %v", domain.ErrStore, err)
	}
	return nil
}

// Delete removes the chunks of documentID, or every chunk when documentID is empty.
func (r *ChunkRepo) Delete(ctx context.Context, documentID string) (int, error) {
	query, args := "DELETE FROM chunks", []any{}
	if documentID != "" {
		query += " WHERE document_id = ?"
		args = append(args, documentID)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to delete chunks: %v", domain.ErrStore, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to count deleted chunks: %v", domain.ErrStore, err)
	}
	return int(n), nil
}

// Count returns the number of chunks stored for documentID, or in total.
func (r *ChunkRepo) Count(ctx context.Context, documentID string) (int, error) {
	query, args := "SELECT COUNT(*) FROM chunks", []any{}
	if documentID != "" {
		query += " WHERE document_id = ?"
		args = append(args, documentID)
	}

	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: failed to count chunks: %v", domain.ErrStore, err)
	}
	return n, nil
}

// List returns chunks ordered by insertion, without embeddings.
func (r *ChunkRepo) List(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := r.scan(ctx, documentID, false, func(c domain.Chunk) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// Scan streams chunks with embeddings in insertion order.
func (r *ChunkRepo) Scan(ctx context.Context, documentID string, fn func(domain.Chunk) error) error {
	return r.scan(ctx, documentID, true, fn)
}

func (r *ChunkRepo) scan(ctx context.Context, documentID string, withEmbedding bool, fn func(domain.Chunk) error) error {
	query, args := "SELECT "+chunkColumns+" FROM chunks", []any{}
	if documentID != "" {
		query += " WHERE document_id = ?"
		args = append(args, documentID)
	}
	query += " ORDER BY seq"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: failed to query chunks: %v", domain.ErrStore, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		row, err := scanChunk(rows)
		if err != nil {
			return fmt.Errorf("%w: failed to scan chunk: %v", domain.ErrStore, err)
		}
		c, err := row.toDomain(withEmbedding)
		if err != nil {
			return fmt.Errorf("%w: chunk %s: %v", domain.ErrStore, row.ID, err)
		}
		if err := fn(c); err != nil {
			return err
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: row iteration error: %v", domain.ErrStore, err)
	}
	return nil
}

// GetByIDs returns the chunks with the given IDs. Unknown IDs are skipped.
func (r *ChunkRepo) GetByIDs(ctx context.Context, ids []string) (map[string]domain.Chunk, error) {
	out := make(map[string]domain.Chunk, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+chunkColumns+" FROM chunks WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query chunks: %v", domain.ErrStore, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	for rows.Next() {
		row, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan chunk: %v", domain.ErrStore, err)
		}
		c, err := row.toDomain(false)
		if err != nil {
			return nil, err
		}
		out[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration error: %v", domain.ErrStore, err)
	}
	return out, nil
}

// Dimension returns the embedding dimension of the first stored chunk.
func (r *ChunkRepo) Dimension(ctx context.Context) (int, error) {
	var dim int
	err := r.db.QueryRowContext(ctx, "SELECT dim FROM chunks ORDER BY seq LIMIT 1").Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: failed to query dimension: %v", domain.ErrStore, err)
	}
	return dim, nil
}
