//go:build cgo

package embedding

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"

	"studyrag/internal/domain"
)

// FastEmbedConfig holds configuration for the FastEmbed provider.
type FastEmbedConfig struct {
	// Model is the embedding model to use.
	// Supported: sentence-transformers/all-MiniLM-L6-v2 (default),
	// BAAI/bge-small-en-v1.5, BAAI/bge-base-en-v1.5, etc.
	Model string
	// CacheDir is the directory model files are downloaded to.
	CacheDir string
	// MaxLength is the maximum input sequence length. Defaults to 512.
	MaxLength int
}

// FastEmbedProvider embeds text with a local ONNX model.
type FastEmbedProvider struct {
	model     *fastembed.FlagEmbedding
	modelName string
	dimension int
	mu        sync.RWMutex
}

// modelMapping maps model names to fastembed model constants.
var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
	"fast-bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"fast-bge-small-en":                      fastembed.BGESmallEN,
	"fast-bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"fast-bge-base-en":                       fastembed.BGEBaseEN,
	"fast-bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"fast-all-MiniLM-L6-v2":                  fastembed.AllMiniLML6V2,
}

// FastEmbedLoader returns a loader that downloads (on first use) and opens
// the configured model.
func FastEmbedLoader(cfg FastEmbedConfig) LoaderFunc {
	return func(ctx context.Context) (Provider, error) {
		return NewFastEmbedProvider(cfg)
	}
}

// NewFastEmbedProvider opens a FastEmbed model. Model files are downloaded
// into CacheDir when missing, which requires network access.
func NewFastEmbedProvider(cfg FastEmbedConfig) (*FastEmbedProvider, error) {
	if cfg.Model == "" {
		cfg.Model = "sentence-transformers/all-MiniLM-L6-v2"
	}
	model, ok := modelMapping[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported fastembed model %q", domain.ErrValidation, cfg.Model)
	}

	cacheDir := cfg.CacheDir
	if cacheDir == "" {
		cacheDir = filepath.Join(".", "local_cache")
	}
	maxLength := cfg.MaxLength
	if maxLength == 0 {
		maxLength = 512
	}
	showProgress := false

	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cacheDir,
		MaxLength:            maxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing fastembed: %w", err)
	}

	return &FastEmbedProvider{
		model:     flagEmbed,
		modelName: cfg.Model,
		dimension: ModelDimension(cfg.Model),
	}, nil
}

// EmbedDocuments embeds passages using the model's passage prefix.
func (p *FastEmbedProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	embeddings, err := p.model.PassageEmbed(texts, 256)
	if err != nil {
		return nil, fmt.Errorf("fastembed passage embed: %w", err)
	}
	return embeddings, nil
}

// EmbedQuery embeds a query using the model's query prefix.
func (p *FastEmbedProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	embedding, err := p.model.QueryEmbed(text)
	if err != nil {
		return nil, fmt.Errorf("fastembed query embed: %w", err)
	}
	return embedding, nil
}

// Dimension returns the embedding dimension for the model.
func (p *FastEmbedProvider) Dimension() int {
	return p.dimension
}

// Close releases the ONNX session.
func (p *FastEmbedProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.model != nil {
		err := p.model.Destroy()
		p.model = nil
		return err
	}
	return nil
}
