// Package app wires configuration into the services shared by the API
// server and the CLI.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"studyrag/internal/config"
	"studyrag/internal/embedding"
	"studyrag/internal/extract"
	"studyrag/internal/indexer"
	"studyrag/internal/metrics"
	"studyrag/internal/rag"
	"studyrag/internal/service"
	"studyrag/internal/storage"
	"studyrag/internal/vectorstore"
)

// App holds the wired components.
type App struct {
	Config   *config.Config
	DB       *sql.DB
	Store    vectorstore.Store
	Embedder *embedding.Service
	Pipeline *indexer.Pipeline
	Engine   rag.Engine
	Service  service.DocumentService

	closers []io.Closer
}

// NewLogger builds the slog logger selected by LOG_LEVEL and LOG_FORMAT.
func NewLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}
	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// New opens the database and builds every component. Nothing is loaded into
// the embedding model until first use.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := slog.Default()

	db, err := storage.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a := &App{Config: cfg, DB: db}

	if err := storage.Migrate(db); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	logger.InfoContext(ctx, "database initialized", "path", cfg.DBPath)

	chunkRepo := storage.NewChunkRepo(db)
	documentRepo := storage.NewDocumentRepo(db)

	switch cfg.VectorBackend {
	case config.BackendQdrant:
		qs, err := vectorstore.NewQdrantStore(cfg.QdrantURL, cfg.QdrantCollection, chunkRepo)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, qs)
		a.Store = qs
		logger.InfoContext(ctx, "using qdrant vector store", "url", cfg.QdrantURL, "collection", cfg.QdrantCollection)
	default:
		a.Store = vectorstore.NewSQLiteStore(chunkRepo)
		logger.InfoContext(ctx, "using sqlite vector store")
	}

	recorder := metrics.NewRecorder()

	load, err := embedding.NewLoader(embedding.ProviderConfig{
		Provider:  cfg.EmbeddingProvider,
		Model:     cfg.EmbeddingModelName,
		BaseURL:   cfg.EmbeddingBaseURL,
		APIKey:    cfg.EmbeddingAPIKey,
		CacheDir:  cfg.EmbeddingCacheDir,
		AutoLoad:  cfg.EmbeddingAutoLoad,
		Dimension: cfg.EmbeddingDimension,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.Embedder, err = embedding.NewService(load, embedding.Options{
		Model:     cfg.EmbeddingModelName,
		MaxChars:  cfg.EmbeddingMaxChars,
		CacheSize: cfg.EmbeddingCacheSize,
		Dimension: cfg.EmbeddingDimension,
		Recorder:  recorder,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.Pipeline = indexer.NewPipeline(
		extract.New(extract.Options{}),
		nil,
		a.Embedder,
		a.Store,
		documentRepo,
		indexer.PipelineOptions{
			Timeout:         cfg.IngestTimeout,
			ReplaceOnIngest: cfg.ReplaceOnIngest,
			EmbeddingModel:  cfg.EmbeddingModelName,
			Observer:        recorder,
		},
	)
	a.Engine = rag.NewEngine(a.Embedder, a.Store, rag.Options{Observer: recorder})
	a.Service = service.NewDocumentService(a.Pipeline, a.Engine, a.Store, documentRepo, service.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	logger.InfoContext(ctx, "services initialized",
		"embedding_provider", cfg.EmbeddingProvider,
		"embedding_model", cfg.EmbeddingModelName,
		"replace_on_ingest", cfg.ReplaceOnIngest,
	)
	return a, nil
}

// Close releases the embedding model, the vector store client and the database.
func (a *App) Close() error {
	var errs []error
	if a.Embedder != nil {
		if err := a.Embedder.Shutdown(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
