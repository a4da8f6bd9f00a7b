// Package embedding turns text into fixed-length, L2-normalized vectors. The
// Service owns a single lazily loaded model provider shared by all callers.
package embedding

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_embedder.go -package=mocks studyrag/internal/embedding Embedder

import (
	"context"
	"fmt"
	"strings"

	"studyrag/internal/domain"
)

// Embedder is the embedding API used by ingestion and retrieval.
type Embedder interface {
	// Embed returns the vector for a single query text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per passage text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension returns the vector length, or 0 when not yet known.
	Dimension() int
}

// Provider is a loaded embedding model.
type Provider interface {
	// EmbedDocuments embeds passages for storage.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedQuery embeds a search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	// Dimension returns the embedding dimension for the loaded model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// LoaderFunc loads a Provider. It is called at most once per Service
// lifecycle, however many callers arrive before the model is ready.
type LoaderFunc func(ctx context.Context) (Provider, error)

// Provider names accepted by NewLoader.
const (
	ProviderFastEmbed = "fastembed"
	ProviderHTTP      = "http"
	ProviderHashing   = "hashing"
)

// ProviderConfig holds configuration for creating a provider loader.
type ProviderConfig struct {
	// Provider is the provider type: "fastembed", "http" or "hashing".
	Provider string
	// Model is the embedding model name.
	Model string
	// BaseURL is the embeddings server URL (http provider only).
	BaseURL string
	// APIKey is sent as a bearer token (http provider only).
	APIKey string
	// CacheDir is the model download directory (fastembed only).
	CacheDir string
	// AutoLoad asks the embeddings server to load Model before first use (http provider only).
	AutoLoad bool
	// Dimension overrides the dimension derived from Model.
	Dimension int
}

// NewLoader returns the loader for the configured provider. Nothing is loaded
// until the returned function is called.
func NewLoader(cfg ProviderConfig) (LoaderFunc, error) {
	dim := cfg.Dimension
	if dim <= 0 {
		dim = ModelDimension(cfg.Model)
	}

	switch strings.ToLower(cfg.Provider) {
	case ProviderFastEmbed, "":
		return FastEmbedLoader(FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		}), nil
	case ProviderHTTP:
		return HTTPLoader(HTTPConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			Dimension: dim,
			AutoLoad:  cfg.AutoLoad,
		}), nil
	case ProviderHashing:
		return HashingLoader(dim), nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding provider %q", domain.ErrValidation, cfg.Provider)
	}
}

// modelDimensions maps known model names to their embedding dimensions.
var modelDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"fast-bge-small-en-v1.5":                 384,
	"fast-bge-small-en":                      384,
	"fast-bge-base-en-v1.5":                  768,
	"fast-bge-base-en":                       768,
	"fast-bge-small-zh-v1.5":                 512,
	"fast-all-MiniLM-L6-v2":                  384,
}

// ModelDimension returns the embedding dimension for a model name. Unknown
// names are guessed from their size suffix and default to 384.
func ModelDimension(model string) int {
	if dim, ok := modelDimensions[model]; ok {
		return dim
	}
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "large"):
		return 1024
	case strings.Contains(lower, "base"):
		return 768
	default:
		return 384
	}
}
