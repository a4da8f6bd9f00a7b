package handlers

import (
	"errors"
	"io"
	"net/http"

	"studyrag/internal/contextutil"
	"studyrag/internal/service"
)

// multipartOverhead is allowed on top of the file size limit for headers and boundaries.
const multipartOverhead = 1 << 20

// UploadHandler handles file uploads.
type UploadHandler struct {
	service        service.DocumentService
	maxUploadBytes int64
}

// NewUploadHandler creates a new UploadHandler.
func NewUploadHandler(svc service.DocumentService, maxUploadBytes int64) *UploadHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = service.DefaultMaxUploadBytes
	}
	return &UploadHandler{
		service:        svc,
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadResponse represents the response for a processed upload.
//
// swagger:model UploadResponse
type UploadResponse struct {
	DocumentID string `json:"document_id"`
	ChunkCount int    `json:"chunk_count"`
	Filename   string `json:"filename"`
	PageCount  int    `json:"page_count,omitempty"`
	Method     string `json:"method,omitempty"`
	Reused     bool   `json:"reused,omitempty"`
}

// ServeHTTP handles file uploads.
//
// swagger:route POST /api/v1/upload uploadDocument
//
// # Upload a PDF, markdown or text file
//
// The file is extracted, chunked, embedded and stored.
//
// ---
// consumes:
// - multipart/form-data
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Document processed
//	  schema:
//	    "$ref": "#/definitions/UploadResponse"
//	'400':
//	  description: Missing file, file too large or unreadable
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'422':
//	  description: File was read but contains no usable text
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'502':
//	  description: Embedding model unavailable
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'504':
//	  description: Extraction or model load timed out
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.WarnContext(ctx, "upload body too large", "limit", tooLarge.Limit)
			writeError(w, http.StatusBadRequest, "File too large")
			return
		}
		logger.WarnContext(ctx, "missing upload file", "error", err)
		writeError(w, http.StatusBadRequest, "Multipart field 'file' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		logger.WarnContext(ctx, "failed to read upload", "error", err)
		writeError(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	result, err := h.service.Upload(ctx, service.UploadRequest{
		Filename: header.Filename,
		Data:     data,
	})
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to process upload")
		return
	}

	writeJSON(ctx, w, http.StatusOK, UploadResponse{
		DocumentID: result.DocumentID,
		ChunkCount: result.ChunkCount,
		Filename:   result.Filename,
		PageCount:  result.PageCount,
		Method:     result.Method,
		Reused:     result.Reused,
	})
}
