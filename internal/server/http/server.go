// Package httpserver provides the HTTP REST API for the federated search
// service.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/helixir/federated-search-service/internal/cache"
	"github.com/helixir/federated-search-service/internal/domain"
	"github.com/helixir/federated-search-service/internal/selection"
	"github.com/helixir/federated-search-service/internal/sources"
)

// Searcher is the pipeline surface the HTTP layer depends on.
type Searcher interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error)
	LookupDOI(ctx context.Context, doi string) (*domain.EnrichedRecord, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP REST API server.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	pipeline   Searcher
	registry   *sources.Registry
	aggregator *sources.AggregatorManager
	monitor    *selection.Monitor
	cache      *cache.Manager
	warmer     *cache.Warmer
	validate   *validator.Validate
	logger     zerolog.Logger
}

// NewServer creates the HTTP server. monitor, cache, and warmer may be nil;
// the corresponding endpoints then report empty or unavailable.
func NewServer(
	cfg Config,
	pipeline Searcher,
	registry *sources.Registry,
	aggregator *sources.AggregatorManager,
	monitor *selection.Monitor,
	cacheManager *cache.Manager,
	warmer *cache.Warmer,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		pipeline:   pipeline,
		registry:   registry,
		aggregator: aggregator,
		monitor:    monitor,
		cache:      cacheManager,
		warmer:     warmer,
		validate:   validator.New(),
		logger:     logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(s.requestLogMiddleware)
	r.Use(jsonContentTypeMiddleware)

	// Health endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/search", s.searchHandler)
		r.Get("/papers/*", s.paperHandler)
		r.Get("/sources", s.sourcesHandler)
		r.Get("/sources/performance", s.sourcePerformanceHandler)
		r.Get("/cache/stats", s.cacheStatsHandler)
		r.Post("/cache/invalidate", s.cacheInvalidateHandler)
		r.Post("/cache/warm", s.warmHandler)
	})

	return r
}

// Handler exposes the router, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler reports readiness: at least one provider connector must be
// enabled for searches to make sense.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	enabled := s.registry.Enabled()
	if len(enabled) == 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"error":  "no provider connectors enabled",
		})
		return
	}

	names := make([]string, len(enabled))
	for i, conn := range enabled {
		names[i] = string(conn.Source())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ready",
		"sources": names,
	})
}
