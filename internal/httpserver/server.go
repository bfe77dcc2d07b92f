package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sentineldb/siemcore/pkg/tenant"
)

// ComponentPinger reports whether an external collaborator is reachable.
// Implemented by the store gateway and the coordination gateway.
type ComponentPinger interface {
	Ping(ctx context.Context) error
}

// Config carries the subset of application config the server needs.
type Config struct {
	CORSAllowedOrigins []string
}

// Server holds the HTTP server dependencies and mounts the v2 API.
type Server struct {
	Router    *chi.Mux
	APIRouter chi.Router // /api/v2

	logger    *slog.Logger
	store     ComponentPinger
	coord     ComponentPinger
	startedAt time.Time
}

// NewServer creates an HTTP server with middleware and health/metrics endpoints.
// Domain handlers should be mounted on APIRouter after calling NewServer.
func NewServer(cfg Config, logger *slog.Logger, store, coord ComponentPinger, metricsReg *prometheus.Registry) *Server {
	s := &Server{
		Router:    chi.NewRouter(),
		logger:    logger,
		store:     store,
		coord:     coord,
		startedAt: time.Now(),
	}

	s.Router.Use(RequestID)
	s.Router.Use(Logger(logger))
	s.Router.Use(Metrics)
	s.Router.Use(chimiddleware.Recoverer)
	s.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Idempotency-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.Router.Handle("/metrics", promhttp.HandlerFor(metricsReg, promhttp.HandlerOpts{}))

	s.Router.Route("/api/v2", func(r chi.Router) {
		r.Use(tenant.Middleware)
		r.Get("/health", s.handleHealth)
		s.APIRouter = r
	})

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

type componentStatus struct {
	Status string `json:"status"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Components map[string]componentStatus `json:"components"`
}

// handleHealth reports per-dependency status, per the error-handling design's
// "healthcheck reports per-dependency status" requirement.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	components := map[string]componentStatus{}
	overall := "ok"

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("health check: store ping failed", "error", err)
		components["store"] = componentStatus{Status: "down"}
		overall = "degraded"
	} else {
		components["store"] = componentStatus{Status: "ok"}
	}

	if err := s.coord.Ping(ctx); err != nil {
		s.logger.Warn("health check: coordination store ping failed", "error", err)
		components["coord"] = componentStatus{Status: "down"}
		overall = "degraded"
	} else {
		components["coord"] = componentStatus{Status: "ok"}
	}

	Respond(w, http.StatusOK, healthResponse{Status: overall, Components: components})
}
