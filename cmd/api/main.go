package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studyrag/internal/app"
	"studyrag/internal/config"
	"studyrag/internal/http"
)

//go:generate swagger generate spec -o swagger.json

// General API information
//
// This API ingests study material (PDF, markdown, text), answers questions
// from the stored passages and builds topic mind maps.
//
// swagger:meta
//
// ---
// swagger: '2.0'
// info:
//   title: StudyRAG API
//   description: |
//     Retrieval API over uploaded study documents. Upload a file, then ask
//     questions or request a mind map of its topics.
//   version: 1.0.0
// schemes:
//   - http
//   - https
// consumes:
//   - application/json
// produces:
//   - application/json

const shutdownTimeout = 15 * time.Second

func main() {
	// Load configuration first (needed for log level)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := app.NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", cfg.LogLevel.String(), "format", cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			slog.Error("Failed to release resources", "error", err)
		}
	}()

	if cfg.EmbeddingAutoLoad {
		// Warm the model in the background so the first upload does not pay for it.
		go func() {
			loadCtx, cancel := context.WithTimeout(ctx, cfg.IngestTimeout)
			defer cancel()
			if err := a.Embedder.Initialize(loadCtx); err != nil {
				slog.Warn("Embedding model warm-up failed", "error", err)
				return
			}
			slog.Info("Embedding model loaded", "model", cfg.EmbeddingModelName, "dimension", a.Embedder.Dimension())
		}()
	}

	router := http.NewRouter(&http.Deps{
		Service:             a.Service,
		Store:               a.Store,
		Embedder:            a.Embedder,
		MaxUploadBytes:      cfg.MaxUploadBytes,
		UploadRatePerMinute: cfg.UploadRatePerMinute,
	})

	server := &nethttp.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("Shutting down API server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Graceful shutdown failed", "error", err)
		}
	}()

	slog.Info("Starting API server", "addr", server.Addr, "vector_backend", cfg.VectorBackend)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
		log.Fatalf("API server failed: %v", err)
	}
}
