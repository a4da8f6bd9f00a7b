package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"studyrag/internal/contextutil"
)

// ChunkCounter reports the number of stored chunks. vectorstore.Store implements it.
type ChunkCounter interface {
	Count(ctx context.Context, documentID string) (int, error)
}

// ReadinessChecker reports whether the embedding model is loaded.
type ReadinessChecker interface {
	Ready() bool
}

// HealthHandler handles HTTP requests for health checks.
type HealthHandler struct {
	store              ChunkCounter
	embedder           ReadinessChecker
	healthCheckTimeout time.Duration
}

// NewHealthHandler creates a new HealthHandler. embedder may be nil.
func NewHealthHandler(store ChunkCounter, embedder ReadinessChecker) *HealthHandler {
	return &HealthHandler{
		store:              store,
		embedder:           embedder,
		healthCheckTimeout: 5 * time.Second,
	}
}

// HealthResponse represents the health check response.
//
// swagger:model HealthResponse
type HealthResponse struct {
	// Overall health status: "healthy" or "unhealthy"
	Status string `json:"status"`

	// Timestamp of the health check
	Timestamp string `json:"timestamp"`

	// Individual check results
	Checks map[string]string `json:"checks"`

	// Number of stored chunks
	Chunks int `json:"chunks"`

	// List of issues (only present if status is unhealthy)
	Issues []string `json:"issues,omitempty"`
}

// ServeHTTP handles HTTP requests for health checks.
//
// Returns 200 OK if the store is reachable, 503 Service Unavailable otherwise.
// An embedding model that has not been loaded yet is reported but does not
// make the service unhealthy; it loads on first use.
//
// swagger:route GET /api/health healthCheck
//
// # Health check endpoint
//
// ---
// produces:
// - application/json
// responses:
//
//	'200':
//	  description: System is healthy
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
//	'503':
//	  description: System is unhealthy
//	  schema:
//	    "$ref": "#/definitions/HealthResponse"
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodGet {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.healthCheckTimeout)
	defer cancel()

	checks := make(map[string]string)
	var issues []string

	chunks, storeOK := h.checkStore(checkCtx, logger)
	if storeOK {
		checks["vector_store"] = "ok"
	} else {
		checks["vector_store"] = "error"
		issues = append(issues, "vector_store_unavailable")
	}

	checks["embedder"] = "not_loaded"
	if h.embedder != nil && h.embedder.Ready() {
		checks["embedder"] = "ready"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	if len(issues) > 0 {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Chunks:    chunks,
		Issues:    issues,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.ErrorContext(ctx, "failed to encode health response", "error", err)
	}
}

// checkStore checks if the vector store answers a count query.
func (h *HealthHandler) checkStore(ctx context.Context, logger *slog.Logger) (int, bool) {
	n, err := h.store.Count(ctx, "")
	if err != nil {
		logger.WarnContext(ctx, "vector store health check failed", "error", err)
		return 0, false
	}
	return n, true
}
