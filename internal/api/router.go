package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aizhuhelper/recipevision/internal/api/handler"
	mw "github.com/aizhuhelper/recipevision/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	analyzeHandler *handler.AnalyzeHandler,
	healthHandler *handler.HealthHandler,
	apiKey string,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	// Downloads plus inference can legitimately take minutes.
	r.Use(middleware.Timeout(10 * time.Minute))
	r.Use(mw.CORS)

	// Health endpoints (no auth)
	r.Get("/health", healthHandler.Live)
	r.Get("/ready", healthHandler.Ready)

	// API v1 (authenticated when a key is configured)
	r.Route("/api/v1", func(r chi.Router) {
		if apiKey != "" {
			r.Use(mw.APIKeyAuth(apiKey))
		}

		r.Post("/analyze", analyzeHandler.Upload)
		r.Post("/analyze-from-url", analyzeHandler.FromURL)
		r.Post("/analyze/supplement", analyzeHandler.Supplement)
	})

	return r
}
