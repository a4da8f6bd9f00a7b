package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrExtraction is returned when a file cannot be turned into usable text.
	ErrExtraction = errors.New("extraction error")
	// ErrFileTooSmall is returned for empty or truncated uploads.
	ErrFileTooSmall = fmt.Errorf("%w: file too small", ErrExtraction)
	// ErrUnreadable is returned when the file cannot be parsed at all.
	ErrUnreadable = fmt.Errorf("%w: file unreadable", ErrExtraction)
	// ErrNoText is returned when parsing succeeded but too little text was recovered.
	ErrNoText = fmt.Errorf("%w: no extractable text", ErrExtraction)

	// ErrEmbedding is returned when the embedding model is unavailable or the input is empty.
	ErrEmbedding = errors.New("embedding error")
	// ErrStore is returned for transaction and connection failures in the vector store.
	ErrStore = errors.New("store error")
	// ErrNotReady is returned when a query runs against a store with no chunks.
	ErrNotReady = errors.New("not ready: no documents have been ingested")
	// ErrValidation is returned for malformed vectors, dimension mismatches and bad requests.
	ErrValidation = errors.New("validation error")
	// ErrTimeout is returned when PDF parsing or model loading exceeds its deadline.
	ErrTimeout = errors.New("operation timed out")
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
)

// ValidationError represents a validation error with a field name.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
