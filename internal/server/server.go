// Package server provides the HTTP API for Pelorus: signal and allocation
// read access, provider health and run triggering.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/pelorusfin/pelorus/internal/allocation"
	"github.com/pelorusfin/pelorus/internal/domain"
)

// SignalReader is the read surface the API exposes.
type SignalReader interface {
	LatestSignals() ([]*domain.InvestmentSignal, error)
	SignalsByTicker(ticker string, limit int) ([]*domain.InvestmentSignal, error)
	LatestAllocation() (*allocation.PortfolioAllocation, error)
}

// ProviderStatusSource reports per-provider fallback health.
type ProviderStatusSource interface {
	ProviderNames() []string
	FailureCounts() map[string]int64
}

// RunTrigger starts a pipeline run on demand.
type RunTrigger interface {
	TriggerRun(ctx context.Context) error
}

// Config holds server configuration.
type Config struct {
	Port      int
	DevMode   bool
	Log       zerolog.Logger
	Signals   SignalReader
	Providers ProviderStatusSource
	Trigger   RunTrigger
}

// Server is the HTTP server.
type Server struct {
	router   *chi.Mux
	server   *http.Server
	log      zerolog.Logger
	handlers *Handlers
	started  time.Time
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		log:      cfg.Log.With().Str("component", "server").Logger(),
		handlers: NewHandlers(cfg.Signals, cfg.Providers, cfg.Trigger, cfg.Log),
		started:  time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handlers.HandleHealth(s.started))

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/signals", s.handlers.HandleLatestSignals)
		r.Get("/signals/{ticker}", s.handlers.HandleSignalsByTicker)
		r.Get("/allocation/latest", s.handlers.HandleLatestAllocation)
		r.Get("/providers/status", s.handlers.HandleProviderStatus)
		r.Post("/run", s.handlers.HandleTriggerRun)
	})
}

// Router exposes the mux for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins serving. Blocks until the server stops.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
