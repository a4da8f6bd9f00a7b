// Package metrics exposes Prometheus collectors for the HTTP layer, the
// embedding service, ingestion and retrieval.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "studyrag"

var (
	EmbeddingRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Total number of embedding requests",
		},
		[]string{"operation", "status"},
	)

	EmbeddingRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	EmbeddingTextsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_texts_total",
			Help:      "Total texts sent to the embedding model",
		},
		[]string{"operation"},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	IngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_total",
			Help:      "Total document ingestions by extraction method and status",
		},
		[]string{"method", "status"},
	)

	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_duration_seconds",
			Help:      "Document ingestion duration in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	IngestChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_chunks_total",
			Help:      "Total chunks stored by ingestion",
		},
	)

	SearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_total",
			Help:      "Total retrieval queries",
		},
		[]string{"status"},
	)

	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Retrieval query duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	SearchResults = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of passages returned per query",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestDuration,
		httpRequestsTotal,
		EmbeddingRequestsTotal,
		EmbeddingRequestDuration,
		EmbeddingTextsTotal,
		EmbeddingCacheTotal,
		IngestTotal,
		IngestDuration,
		IngestChunksTotal,
		SearchTotal,
		SearchDuration,
		SearchResults,
	)
}

// Recorder adapts the package collectors to the observer interfaces of the
// embedding, indexer and rag packages.
type Recorder struct{}

// NewRecorder returns a Recorder writing to the default registry.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveEmbedding records one embedding model call.
func (*Recorder) ObserveEmbedding(operation string, batch int, duration time.Duration, err error) {
	EmbeddingRequestsTotal.WithLabelValues(operation, status(err)).Inc()
	EmbeddingRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err == nil {
		EmbeddingTextsTotal.WithLabelValues(operation).Add(float64(batch))
	}
}

// ObserveCache records an embedding cache lookup.
func (*Recorder) ObserveCache(hit bool) {
	if hit {
		EmbeddingCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	EmbeddingCacheTotal.WithLabelValues("miss").Inc()
}

// ObserveIngest records one document ingestion.
func (*Recorder) ObserveIngest(method string, chunks int, duration time.Duration, err error) {
	if method == "" {
		method = "unknown"
	}
	IngestTotal.WithLabelValues(method, status(err)).Inc()
	IngestDuration.Observe(duration.Seconds())
	if err == nil {
		IngestChunksTotal.Add(float64(chunks))
	}
}

// ObserveSearch records one retrieval query.
func (*Recorder) ObserveSearch(results int, duration time.Duration, err error) {
	SearchTotal.WithLabelValues(status(err)).Inc()
	SearchDuration.Observe(duration.Seconds())
	if err == nil {
		SearchResults.Observe(float64(results))
	}
}
