package handlers

import (
	"encoding/json"
	"net/http"

	"studyrag/internal/contextutil"
	"studyrag/internal/domain"
	"studyrag/internal/service"
)

// MindMapHandler handles mind-map requests.
type MindMapHandler struct {
	service service.DocumentService
}

// NewMindMapHandler creates a new MindMapHandler.
func NewMindMapHandler(svc service.DocumentService) *MindMapHandler {
	return &MindMapHandler{service: svc}
}

// MindMapRequest represents the mind-map request payload. When Text is empty
// the stored chunks of DocumentID, or of every document, are used.
//
// swagger:model MindMapRequest
type MindMapRequest struct {
	Text       string `json:"text,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

// MindMapNode is one node of the returned tree.
//
// swagger:model MindMapNode
type MindMapNode struct {
	Title    string        `json:"title"`
	Children []MindMapNode `json:"children"`
}

// ServeHTTP handles mind-map requests.
//
// swagger:route POST /api/v1/mindmap buildMindMap
//
// # Build a topic mind map
//
// ---
// consumes:
// - application/json
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Topic tree
//	  schema:
//	    "$ref": "#/definitions/MindMapNode"
//	'404':
//	  description: Unknown document
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
//	'409':
//	  description: No documents have been ingested
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *MindMapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req MindMapRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.WarnContext(ctx, "invalid request body", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	tree, err := h.service.MindMap(ctx, service.MindMapRequest{
		Text:       req.Text,
		DocumentID: req.DocumentID,
	})
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to build mind map")
		return
	}

	writeJSON(ctx, w, http.StatusOK, toMindMapNode(tree))
}

func toMindMapNode(n domain.MindMapNode) MindMapNode {
	children := make([]MindMapNode, len(n.Children))
	for i, c := range n.Children {
		children[i] = toMindMapNode(c)
	}
	return MindMapNode{Title: n.Title, Children: children}
}
