// Package server provides the HTTP server for the strokerehab scoring service.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ayusman/strokerehab/internal/app"
	"github.com/ayusman/strokerehab/internal/emitter"
	"github.com/ayusman/strokerehab/internal/features"
	"github.com/ayusman/strokerehab/internal/server/api"
	"github.com/ayusman/strokerehab/internal/store"
)

// StatsReporter reports result publishing statistics.
type StatsReporter interface {
	Stats() emitter.Stats
}

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Scorer    *app.Scorer
	ModelName string        // active model, reported by /api/health
	Emitter   StatsReporter // optional
}

// Server represents the HTTP server for the scoring service.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// handle registers h under pattern with an OpenTelemetry span per request.
func (s *Server) handle(pattern string, h http.Handler) {
	s.mux.Handle(pattern, otelhttp.NewHandler(h, pattern))
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.handle("/api/health", http.HandlerFunc(s.handleHealth))
	s.handle("/api/schema", api.SchemaHandler{})

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.handle("/api/sessions", sessions)
		s.handle("/api/sessions/", sessions)
	}

	if s.config.Scorer != nil && s.config.Store != nil {
		attempts := api.NewAttemptHandler(s.config.Scorer, s.config.Store)
		s.handle("/api/attempts", attempts)
		s.handle("/api/attempts/", attempts)
	}

	if s.config.Scorer != nil {
		s.handle("/api/stream", NewStreamHandler(s.config.Scorer))
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	model := s.config.ModelName
	if model == "" || s.config.Scorer == nil {
		model = "none"
	}

	response := map[string]interface{}{
		"status":         "ok",
		"uptime":         time.Since(s.start).String(),
		"schema_version": features.SchemaVersion,
		"model":          model,
	}
	if s.config.Store != nil {
		response["database"] = "ok"
		if err := s.config.Store.Ping(r.Context()); err != nil {
			response["status"] = "degraded"
			response["database"] = "unavailable"
		}
	}
	if s.config.Emitter != nil {
		response["mqtt"] = s.config.Emitter.Stats()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// HTTPServer returns an http.Server serving s on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
