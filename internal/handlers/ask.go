package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"studyrag/internal/contextutil"
	"studyrag/internal/domain"
	"studyrag/internal/rag"
	"studyrag/internal/service"
)

// AskHandler handles HTTP requests for retrieval queries.
type AskHandler struct {
	service service.DocumentService
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(svc service.DocumentService) *AskHandler {
	return &AskHandler{service: svc}
}

// AskRequest represents the HTTP request payload for retrieval queries.
// This mirrors rag.AskRequest but is defined here for HTTP layer separation.
//
// swagger:model AskRequest
type AskRequest struct {
	Question   string   `json:"question"`
	TopK       int      `json:"top_k,omitempty"`
	Threshold  *float64 `json:"threshold,omitempty"`
	DocumentID string   `json:"document_id,omitempty"`
}

// AskResponse represents the HTTP response payload for retrieval queries.
//
// swagger:model AskResponse
type AskResponse struct {
	// The retrieved passages joined in score order
	Answer string `json:"answer"`

	// Retrieved passages, highest score first
	Sources []SourceResponse `json:"sources"`

	// Debug contains debug information when debug mode is enabled (via ?debug=true query parameter).
	Debug *DebugInfo `json:"debug,omitempty"`
}

// SourceResponse represents one retrieved passage in the HTTP response.
//
// swagger:model SourceResponse
type SourceResponse struct {
	Text         string              `json:"text"`
	Score        float64             `json:"score"`
	ChunkID      string              `json:"chunk_id"`
	DocumentID   string              `json:"document_id"`
	SectionTitle string              `json:"section_title,omitempty"`
	SectionLevel domain.SectionLevel `json:"section_level,omitempty"`
	PageNumber   int                 `json:"page_number,omitempty"`
}

// DebugInfo contains debug information when debug mode is enabled.
//
// swagger:model DebugInfo
type DebugInfo struct {
	// RetrievedChunks contains all retrieved chunks with scores and ranks.
	RetrievedChunks []DebugRetrievedChunk `json:"retrieved_chunks"`
	// TopK is the effective result cap.
	TopK int `json:"top_k"`
	// StoredChunks is the number of chunks searched.
	StoredChunks int `json:"stored_chunks"`
	// EmbeddingDimension is the query vector length.
	EmbeddingDimension int `json:"embedding_dimension"`
}

// DebugRetrievedChunk represents a retrieved chunk with scoring information.
//
// swagger:model DebugRetrievedChunk
type DebugRetrievedChunk struct {
	// ChunkID is the stable chunk identifier.
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	// SectionTitle is the heading the chunk was filed under.
	SectionTitle string `json:"section_title,omitempty"`
	PageNumber   int    `json:"page_number,omitempty"`
	// ScoreVector is the cosine similarity score.
	ScoreVector float64 `json:"score_vector"`
	// ScoreLexical is the informational term-overlap score.
	ScoreLexical float64 `json:"score_lexical"`
	// Text is the full chunk text.
	Text string `json:"text"`
	// Rank is the rank of this chunk in the retrieval results (1-based).
	Rank int `json:"rank"`
}

// ServeHTTP handles HTTP requests for retrieval queries.
//
// swagger:route POST /api/v1/ask askQuestion
//
// # Ask a question
//
// Embeds the question and returns the most similar stored passages.
// Use the `debug=true` query parameter to include per-chunk scores.
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Retrieved passages
//	  schema:
//	    "$ref": "#/definitions/AskResponse"
//	'400':
//	  description: Bad request (empty question, invalid top_k or threshold)
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'409':
//	  description: No documents have been ingested
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'502':
//	  description: Embedding model unavailable
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'503':
//	  description: Vector store unavailable
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	debug := false
	if debugParam := r.URL.Query().Get("debug"); debugParam != "" {
		debug = strings.ToLower(debugParam) == "true" || debugParam == "1"
	}

	ragResp, err := h.service.Ask(ctx, rag.AskRequest{
		Question:   req.Question,
		TopK:       req.TopK,
		Threshold:  req.Threshold,
		DocumentID: req.DocumentID,
		Debug:      debug,
	})
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to process query")
		return
	}

	sources := make([]SourceResponse, len(ragResp.Sources))
	for i, src := range ragResp.Sources {
		sources[i] = SourceResponse{
			Text:         src.Text,
			Score:        src.Score,
			ChunkID:      src.ChunkID,
			DocumentID:   src.DocumentID,
			SectionTitle: src.SectionTitle,
			SectionLevel: src.SectionLevel,
			PageNumber:   src.PageNumber,
		}
	}

	resp := AskResponse{
		Answer:  ragResp.Answer,
		Sources: sources,
	}

	if ragResp.Debug != nil {
		debugChunks := make([]DebugRetrievedChunk, 0, len(ragResp.Debug.RetrievedChunks))
		for _, chunk := range ragResp.Debug.RetrievedChunks {
			debugChunks = append(debugChunks, DebugRetrievedChunk{
				ChunkID:      chunk.ChunkID,
				DocumentID:   chunk.DocumentID,
				SectionTitle: chunk.SectionTitle,
				PageNumber:   chunk.PageNumber,
				ScoreVector:  chunk.ScoreVector,
				ScoreLexical: chunk.ScoreLexical,
				Text:         chunk.Text,
				Rank:         chunk.Rank,
			})
		}
		resp.Debug = &DebugInfo{
			RetrievedChunks:    debugChunks,
			TopK:               ragResp.Debug.TopK,
			StoredChunks:       ragResp.Debug.StoredChunks,
			EmbeddingDimension: ragResp.Debug.EmbeddingDimension,
		}
	}

	writeJSON(ctx, w, http.StatusOK, resp)
}
