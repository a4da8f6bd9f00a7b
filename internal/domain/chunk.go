// Package domain holds the record types shared by the ingestion and retrieval
// packages, and the error taxonomy they report.
package domain

import "time"

// SectionLevel tags the depth of the heading a chunk was filed under.
type SectionLevel string

const (
	LevelNone        SectionLevel = ""
	LevelUnit        SectionLevel = "unit"
	LevelTopic       SectionLevel = "topic"
	LevelSubtopic    SectionLevel = "subtopic"
	LevelSubSubtopic SectionLevel = "sub-subtopic"
)

// Valid reports whether l is one of the known levels (including LevelNone).
func (l SectionLevel) Valid() bool {
	switch l {
	case LevelNone, LevelUnit, LevelTopic, LevelSubtopic, LevelSubSubtopic:
		return true
	}
	return false
}

// Chunk is the unit of retrieval.
//
// ID, DocumentID, Text and Embedding are required for a persisted chunk.
// SectionTitle, SectionLevel and PageNumber are optional; PageNumber is 0 when unknown.
// Embedding must not be modified once the chunk has been stored.
type Chunk struct {
	ID           string
	DocumentID   string
	Index        int // Sequential position within the document, starting at 0
	Text         string
	SectionTitle string
	SectionLevel SectionLevel
	PageNumber   int
	Embedding    []float32
	CreatedAt    time.Time
}

// Document is an ingested file. It owns zero or more chunks.
type Document struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash"` // SHA256 hex of the uploaded bytes
	ChunkCount  int       `json:"chunk_count"`
	CharCount   int       `json:"char_count"` // Length of the cleaned text
	CreatedAt   time.Time `json:"created_at"`
}

// SearchResult is a chunk paired with its cosine similarity to a query.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Paragraph is one block of cleaned text handed from the extractor to the chunker.
// Heading is set when the source format marks the block as a heading explicitly
// (markdown); PDF paragraphs rely on the chunker's line classification instead.
type Paragraph struct {
	Text    string
	Page    int
	Heading bool
	Level   SectionLevel
}

// MindMapNode is one node of a topic tree. Trees are rebuilt on every
// request and have no identity beyond their titles.
type MindMapNode struct {
	Title    string        `json:"title"`
	Children []MindMapNode `json:"children"`
}
