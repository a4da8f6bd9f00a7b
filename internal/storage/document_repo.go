package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_document_store.go -package=mocks studyrag/internal/storage DocumentStore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"studyrag/internal/domain"
)

// ErrNotFound is returned when a record is not found.
var ErrNotFound = domain.ErrNotFound

// DocumentStore defines the interface for document registry operations.
type DocumentStore interface {
	// Upsert inserts a document or replaces the stored fields of an existing one.
	Upsert(ctx context.Context, doc *domain.Document) error
	// GetByID returns ErrNotFound if the document does not exist.
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	// GetByHash returns the most recent document with the given content hash,
	// or ErrNotFound.
	GetByHash(ctx context.Context, hash string) (*domain.Document, error)
	// List returns all documents, newest first.
	List(ctx context.Context) ([]domain.Document, error)
	// Delete removes a document record. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, id string) error
	// DeleteAll removes every document record.
	DeleteAll(ctx context.Context) (int, error)
}

// DocumentRepo provides methods for document operations.
// It implements the DocumentStore interface.
type DocumentRepo struct {
	db *sql.DB
}

// NewDocumentRepo creates a new DocumentRepo.
func NewDocumentRepo(db *sql.DB) *DocumentRepo {
	return &DocumentRepo{db: db}
}

const documentColumns = "id, filename, content_hash, chunk_count, char_count, created_at"

func scanDocument(s scanner) (*domain.Document, error) {
	var doc domain.Document
	var createdAt string
	if err := s.Scan(&doc.ID, &doc.Filename, &doc.ContentHash, &doc.ChunkCount, &doc.CharCount, &createdAt); err != nil {
		return nil, err
	}
	t, err := time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at timestamp: %w", err)
	}
	doc.CreatedAt = t
	return &doc, nil
}

// Upsert inserts a new document or updates the filename, hash and counts of
// an existing one. CreatedAt is set when zero.
func (r *DocumentRepo) Upsert(ctx context.Context, doc *domain.Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			filename = excluded.filename,
			content_hash = excluded.content_hash,
			chunk_count = excluded.chunk_count,
			char_count = excluded.char_count`,
		doc.ID, doc.Filename, doc.ContentHash, doc.ChunkCount, doc.CharCount, doc.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("%w: failed to upsert document: %v", domain.ErrStore, err)
	}
	return nil
}

// GetByID gets a document by its ID. Returns ErrNotFound if not found.
func (r *DocumentRepo) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := scanDocument(r.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query document: %v", domain.ErrStore, err)
	}
	return doc, nil
}

// GetByHash gets the newest document with the given content hash.
func (r *DocumentRepo) GetByHash(ctx context.Context, hash string) (*domain.Document, error) {
	doc, err := scanDocument(r.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM documents WHERE content_hash = ? ORDER BY created_at DESC LIMIT 1", hash))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query document: %v", domain.ErrStore, err)
	}
	return doc, nil
}

// List returns all documents, newest first.
func (r *DocumentRepo) List(ctx context.Context) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+documentColumns+" FROM documents ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query documents: %v", domain.ErrStore, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	docs := []domain.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan document: %v", domain.ErrStore, err)
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: row iteration error: %v", domain.ErrStore, err)
	}
	return docs, nil
}

// Delete removes a document record.
func (r *DocumentRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("%w: failed to delete document: %v", domain.ErrStore, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: failed to delete document: %v", domain.ErrStore, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAll removes every document record.
func (r *DocumentRepo) DeleteAll(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM documents")
	if err != nil {
		return 0, fmt.Errorf("%w: failed to delete documents: %v", domain.ErrStore, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
