package storage

import (
	"database/sql"
	"time"

	"studyrag/internal/domain"
)

// timeLayout is the format timestamps are stored in. Fixed-width fractions
// keep lexical and chronological order the same.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// chunkRow is a chunks table row before conversion to domain.Chunk.
type chunkRow struct {
	ID           string
	DocumentID   string
	ChunkIndex   int
	Text         string
	Embedding    string
	Dim          int
	PageNumber   sql.NullInt64
	SectionTitle sql.NullString
	SectionLevel sql.NullString
	CreatedAt    string
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const chunkColumns = "id, document_id, chunk_index, text, embedding, dim, page_number, section_title, section_level, created_at"

func scanChunk(s scanner) (chunkRow, error) {
	var r chunkRow
	err := s.Scan(&r.ID, &r.DocumentID, &r.ChunkIndex, &r.Text, &r.Embedding, &r.Dim,
		&r.PageNumber, &r.SectionTitle, &r.SectionLevel, &r.CreatedAt)
	return r, err
}

// toDomain converts the row, decoding the embedding when withEmbedding is set.
func (r chunkRow) toDomain(withEmbedding bool) (domain.Chunk, error) {
	c := domain.Chunk{
		ID:           r.ID,
		DocumentID:   r.DocumentID,
		Index:        r.ChunkIndex,
		Text:         r.Text,
		PageNumber:   int(r.PageNumber.Int64),
		SectionTitle: r.SectionTitle.String,
		SectionLevel: domain.SectionLevel(r.SectionLevel.String),
	}
	if t, err := time.Parse(timeLayout, r.CreatedAt); err == nil {
		c.CreatedAt = t
	}
	if withEmbedding {
		vec, err := DecodeEmbedding(r.Embedding)
		if err != nil {
			return domain.Chunk{}, err
		}
		c.Embedding = vec
	}
	return c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: n > 0}
}
