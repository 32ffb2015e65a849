// Package server provides the HTTP read and acknowledgement surface.
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

	"github.com/grainflow/grainflow/internal/database"
	"github.com/grainflow/grainflow/internal/domain"
	"github.com/grainflow/grainflow/internal/modules/accumulators"
)

// SignalStore is the slice of the signal repository the API consumes.
type SignalStore interface {
	ActiveForBusiness(businessID string) ([]*domain.MarketingSignal, error)
	MarkViewed(signalUUID string) error
	MarkActioned(signalUUID string) error
	Dismiss(signalUUID string) error
}

// AccumulatorStore exposes contracts with their accrual state.
type AccumulatorStore interface {
	ForBusiness(businessID string) ([]*accumulators.Contract, map[string]*accumulators.State, error)
}

// JobRunner triggers registered background jobs on demand.
type JobRunner interface {
	RunNow(name string) error
	JobNames() []string
}

// Config holds server configuration.
type Config struct {
	Log          zerolog.Logger
	Port         int
	DevMode      bool
	Databases    []*database.DB // health-checked databases
	Signals      SignalStore
	Accumulators AccumulatorStore
	Jobs         JobRunner
}

// Server represents the HTTP server.
type Server struct {
	router       *chi.Mux
	server       *http.Server
	log          zerolog.Logger
	databases    []*database.DB
	signals      SignalStore
	accumulators AccumulatorStore
	jobs         JobRunner
	startupTime  time.Time
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		log:          cfg.Log.With().Str("component", "server").Logger(),
		databases:    cfg.Databases,
		signals:      cfg.Signals,
		accumulators: cfg.Accumulators,
		jobs:         cfg.Jobs,
		startupTime:  time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware.
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
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes.
func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/system/info", s.handleSystemInfo)

		r.Route("/signals", func(r chi.Router) {
			r.Get("/", s.handleListSignals)
			r.Post("/{id}/dismiss", s.handleDismissSignal)
			r.Post("/{id}/acted", s.handleSignalActed)
		})

		r.Get("/accumulators", s.handleListAccumulators)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", s.handleListJobs)
			r.Post("/{name}/run", s.handleRunJob)
		})
	})
}

// Router exposes the handler tree, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests.
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
