package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"studyrag/internal/handlers"
	"studyrag/internal/metrics"
	"studyrag/internal/service"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Service        service.DocumentService
	Store          handlers.ChunkCounter
	Embedder       handlers.ReadinessChecker
	MaxUploadBytes int64
	// UploadRatePerMinute limits uploads per client IP. Zero disables the limit.
	UploadRatePerMinute int
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())
	r.Use(CORS)

	askHandler := handlers.NewAskHandler(deps.Service)
	uploadHandler := handlers.NewUploadHandler(deps.Service, deps.MaxUploadBytes)
	mindMapHandler := handlers.NewMindMapHandler(deps.Service)
	documentsHandler := handlers.NewDocumentsHandler(deps.Service)
	statsHandler := handlers.NewStatsHandler(deps.Service)
	healthHandler := handlers.NewHealthHandler(deps.Store, deps.Embedder)
	uploadLimiter := NewRateLimiter(deps.UploadRatePerMinute, uploadBurst(deps.UploadRatePerMinute))

	r.Route("/api", func(r chi.Router) {
		r.Method(http.MethodGet, "/health", healthHandler)

		r.Route("/v1", func(r chi.Router) {
			r.With(uploadLimiter.Middleware).Method(http.MethodPost, "/upload", uploadHandler)
			r.Method(http.MethodPost, "/ask", askHandler)
			r.Method(http.MethodPost, "/mindmap", mindMapHandler)
			r.Get("/documents", documentsHandler.List)
			r.Delete("/documents", documentsHandler.Clear)
			r.Delete("/documents/{id}", documentsHandler.Delete)
			r.Method(http.MethodGet, "/stats", statsHandler)
		})
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

func uploadBurst(perMinute int) int {
	if perMinute < 5 {
		return 1
	}
	return perMinute / 5
}
