package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/windfall/cicero/internal/config"
	httphandler "github.com/windfall/cicero/internal/handler/http"
	"github.com/windfall/cicero/internal/middleware"
)

// HTTPServer represents the HTTP server.
type HTTPServer struct {
	server *http.Server
	log    zerolog.Logger
}

// NewHTTPServer creates a new HTTP server.
func NewHTTPServer(
	cfg *config.Config,
	log zerolog.Logger,
	healthHandler *httphandler.HealthHandler,
	profileHandler *httphandler.ProfileHandler,
	progressHandler *httphandler.ProgressHandler,
	catalogHandler *httphandler.CatalogHandler,
	sessionHandler *httphandler.SessionHandler,
	narrationHandler *httphandler.NarrationHandler,
) *HTTPServer {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(chimiddleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   cfg.CORSAllowedMethods,
		AllowedHeaders:   cfg.CORSAllowedHeaders,
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health endpoints (public)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Get("/live", healthHandler.Live)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Profile endpoints
		r.Post("/profiles", profileHandler.Create)
		r.Get("/profiles/{name}", profileHandler.Get)
		r.Delete("/profiles/{name}", profileHandler.Delete)
		r.Put("/profiles/{name}/language", profileHandler.SetLanguage)

		// Progress endpoints
		r.Get("/progress/{name}", progressHandler.Get)
		r.Get("/progress/{name}/history", progressHandler.History)

		// Catalog endpoints
		r.Get("/modules", catalogHandler.Modules)
		r.Get("/modules/{category}/exercises", catalogHandler.Exercises)
		r.Post("/exercises/adhoc", catalogHandler.AdHoc)

		// Session endpoints
		r.Get("/sessions", sessionHandler.State)
		r.Post("/sessions/select", sessionHandler.Select)
		r.Post("/sessions/record/start", sessionHandler.StartRecording)
		r.Post("/sessions/record/chunk", sessionHandler.PushChunk)
		r.Post("/sessions/record/stop", sessionHandler.StopRecording)
		r.Post("/sessions/abort", sessionHandler.RequestAbort)
		r.Post("/sessions/abort/confirm", sessionHandler.ConfirmAbort)
		r.Post("/sessions/abort/dismiss", sessionHandler.DismissAbort)
		r.Post("/sessions/retry", sessionHandler.Retry)
		r.Post("/sessions/reset", sessionHandler.Reset)

		// Narration endpoints (async cue pickup, 2-step pattern)
		r.Get("/narration/cue", narrationHandler.NextCue)
		r.Post("/narration/quota/clear", narrationHandler.ClearQuota)
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddress(),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &HTTPServer{
		server: server,
		log:    log,
	}
}

// Start starts the HTTP server.
func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
