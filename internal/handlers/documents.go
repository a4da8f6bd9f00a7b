package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"studyrag/internal/contextutil"
	"studyrag/internal/service"
)

// DocumentsHandler lists and deletes ingested documents.
type DocumentsHandler struct {
	service service.DocumentService
}

// NewDocumentsHandler creates a new DocumentsHandler.
func NewDocumentsHandler(svc service.DocumentService) *DocumentsHandler {
	return &DocumentsHandler{service: svc}
}

// DocumentResponse describes one ingested document.
//
// swagger:model DocumentResponse
type DocumentResponse struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentHash string    `json:"content_hash"`
	ChunkCount  int       `json:"chunk_count"`
	CharCount   int       `json:"char_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// DeleteResponse reports how many chunks a delete removed.
//
// swagger:model DeleteResponse
type DeleteResponse struct {
	DocumentID    string `json:"document_id,omitempty"`
	ChunksDeleted int    `json:"chunks_deleted"`
}

// List handles GET /api/v1/documents.
//
// swagger:route GET /api/v1/documents listDocuments
//
// # List ingested documents, newest first
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Documents
//	'503':
//	  description: Store unavailable
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *DocumentsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	docs, err := h.service.ListDocuments(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to list documents")
		return
	}

	resp := make([]DocumentResponse, len(docs))
	for i, d := range docs {
		resp[i] = DocumentResponse{
			ID:          d.ID,
			Filename:    d.Filename,
			ContentHash: d.ContentHash,
			ChunkCount:  d.ChunkCount,
			CharCount:   d.CharCount,
			CreatedAt:   d.CreatedAt.UTC(),
		}
	}
	writeJSON(ctx, w, http.StatusOK, resp)
}

// Delete handles DELETE /api/v1/documents/{id}.
//
// swagger:route DELETE /api/v1/documents/{id} deleteDocument
//
// # Delete one document and its chunks
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Document deleted
//	  schema:
//	    "$ref": "#/definitions/DeleteResponse"
//	'404':
//	  description: Unknown document
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *DocumentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	n, err := h.service.DeleteDocument(ctx, id)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to delete document")
		return
	}
	writeJSON(ctx, w, http.StatusOK, DeleteResponse{DocumentID: id, ChunksDeleted: n})
}

// Clear handles DELETE /api/v1/documents.
//
// swagger:route DELETE /api/v1/documents clearDocuments
//
// # Delete every document and chunk
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Store cleared
//	  schema:
//	    "$ref": "#/definitions/DeleteResponse"
func (h *DocumentsHandler) Clear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	n, err := h.service.Clear(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to clear documents")
		return
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "documents cleared via API", "chunks_deleted", n)
	writeJSON(ctx, w, http.StatusOK, DeleteResponse{ChunksDeleted: n})
}
