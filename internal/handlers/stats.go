package handlers

import (
	"net/http"

	"studyrag/internal/service"
)

// StatsHandler reports ingestion statistics.
type StatsHandler struct {
	service service.DocumentService
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(svc service.DocumentService) *StatsHandler {
	return &StatsHandler{service: svc}
}

// ServeHTTP handles GET /api/v1/stats.
//
// swagger:route GET /api/v1/stats ingestionStats
//
// # Ingestion statistics
//
// Document and chunk counts, words per chunk, chunker and index versions.
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: Statistics
//	'503':
//	  description: Store unavailable
//	  schema:
//	    "$ref": "#/definitions/ErrorResponse"
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.service.Stats(ctx)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to compute stats")
		return
	}
	writeJSON(ctx, w, http.StatusOK, stats)
}
