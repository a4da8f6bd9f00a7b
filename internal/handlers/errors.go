package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"studyrag/internal/contextutil"
	"studyrag/internal/domain"
)

// ErrorResponse represents an error response.
//
// swagger:model ErrorResponse
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps the domain error taxonomy to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoText):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrExtraction):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrEmbedding):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// handleServiceError logs err and writes the mapped status. Internal errors
// are reported with defaultMsg instead of the error text.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error, defaultMsg string) {
	logger := contextutil.LoggerFromContext(ctx)
	status := statusFor(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = defaultMsg
		logger.ErrorContext(ctx, defaultMsg, "error", err)
	} else {
		logger.WarnContext(ctx, "request failed", "status", status, "error", err)
	}
	writeError(w, status, msg)
}

// writeJSON writes v with the given status code.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}
