package rag

import "studyrag/internal/domain"

// AskRequest represents a retrieval query.
type AskRequest struct {
	// Question is the user's question.
	Question string `json:"question"`
	// TopK is the number of passages to return. Zero selects DefaultTopK.
	TopK int `json:"top_k,omitempty"`
	// Threshold drops passages scoring below it when set.
	Threshold *float64 `json:"threshold,omitempty"`
	// DocumentID restricts the search to one document. Empty searches all.
	DocumentID string `json:"document_id,omitempty"`
	// Debug enables debug mode, returning detailed retrieval information.
	Debug bool `json:"debug,omitempty"`
}

// Source is one retrieved passage.
type Source struct {
	// Text is the chunk text, truncated for display.
	Text  string  `json:"text"`
	Score float64 `json:"score"`
	// ChunkID is the stable chunk identifier.
	ChunkID      string              `json:"chunk_id"`
	DocumentID   string              `json:"document_id"`
	SectionTitle string              `json:"section_title,omitempty"`
	SectionLevel domain.SectionLevel `json:"section_level,omitempty"`
	PageNumber   int                 `json:"page_number,omitempty"`
}

// AskResponse holds the passages that answer a question.
type AskResponse struct {
	// Answer is the retrieved passages joined in descending score order.
	// It is empty when nothing scored above the threshold.
	Answer string `json:"answer"`
	// Sources are the retrieved passages, highest score first.
	Sources []Source `json:"sources"`
	// Debug contains debug information when debug mode is enabled.
	Debug *DebugInfo `json:"debug,omitempty"`
}

// DebugInfo contains detailed retrieval information for debugging and evaluation.
type DebugInfo struct {
	// RetrievedChunks contains all retrieved chunks with scores and ranks.
	RetrievedChunks []RetrievedChunk `json:"retrieved_chunks"`
	// TopK is the effective result cap after defaults and clamping.
	TopK int `json:"top_k"`
	// StoredChunks is the number of chunks searched.
	StoredChunks int `json:"stored_chunks"`
	// EmbeddingDimension is the length of the query vector.
	EmbeddingDimension int `json:"embedding_dimension"`
}

// RetrievedChunk represents a retrieved chunk with scoring information.
type RetrievedChunk struct {
	ChunkID      string `json:"chunk_id"`
	DocumentID   string `json:"document_id"`
	SectionTitle string `json:"section_title,omitempty"`
	PageNumber   int    `json:"page_number,omitempty"`
	// ScoreVector is the cosine similarity that ranks the chunk.
	ScoreVector float64 `json:"score_vector"`
	// ScoreLexical is an informational term-overlap score.
	ScoreLexical float64 `json:"score_lexical"`
	// Text is the full chunk text.
	Text string `json:"text"`
	// Rank is the rank of this chunk in the retrieval results (1-based).
	Rank int `json:"rank"`
}
