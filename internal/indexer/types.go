package indexer

import "time"

// IngestResult describes one completed ingestion.
type IngestResult struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	ChunkCount int    `json:"chunk_count"`
	CharCount  int    `json:"char_count"`
	PageCount  int    `json:"page_count,omitempty"`
	// Method is the extraction method that produced the text.
	Method string `json:"method"`
	// Reused is true when identical bytes were already ingested and the
	// existing document was returned.
	Reused   bool          `json:"reused"`
	Duration time.Duration `json:"-"`
}

// Observer receives ingestion outcomes. metrics.Collector implements it.
type Observer interface {
	ObserveIngest(method string, chunks int, d time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveIngest(string, int, time.Duration, error) {}
