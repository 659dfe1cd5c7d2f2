package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	vsmw "github.com/aaronlmathis/vsflux/internal/middleware"
	"github.com/aaronlmathis/vsflux/internal/pipeline"
	"github.com/aaronlmathis/vsflux/internal/stream"
	"github.com/aaronlmathis/vsflux/internal/version"
)

// Server is the status server of a running collector
type Server struct {
	logger *zap.Logger
	router chi.Router
	health *pipeline.Health
	hub    *stream.Hub
}

// NewServer creates a status server. hub may be nil, in which case the line
// stream endpoint is not mounted.
func NewServer(logger *zap.Logger, health *pipeline.Health, hub *stream.Hub) *Server {
	s := &Server{
		logger: logger,
		router: chi.NewRouter(),
		health: health,
		hub:    hub,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(vsmw.RequestIDResponseMiddleware)
	s.router.Use(vsmw.RequestLogger(s.logger))
	s.router.Use(vsmw.PrometheusMiddleware)
	s.router.Use(middleware.Recoverer)
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleReady)
	s.router.Get("/version", s.handleVersion)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.Timeout(10*time.Second)).Get("/health", s.handleCollectorHealth)

		if s.hub != nil {
			r.Get("/stream/lines", s.hub.ServeWS)
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady reports ready once a cycle has completed without a fatal error
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.health.Ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "waiting for first successful cycle"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}

func (s *Server) handleCollectorHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := s.health.GetSnapshot()

	status := http.StatusOK
	if !snapshot.IsHealthy() {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"status":  snapshot.GetStatus(),
		"metrics": snapshot,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
