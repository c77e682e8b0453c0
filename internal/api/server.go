package api

import (
	"log/slog"
	"net/http"

	"github.com/dgallion1/docdecor/internal/config"
	"github.com/dgallion1/docdecor/internal/decorate"
	"github.com/dgallion1/docdecor/internal/pipeline"
	"github.com/dgallion1/docdecor/internal/site"
	"github.com/dgallion1/docdecor/internal/stats"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server serves a documentation site with pages decorated on the fly, plus
// a small decoration API.
type Server struct {
	router       chi.Router
	site         *site.Processor
	dec          *decorate.Decorator
	stats        *stats.Recorder
	orchestrator *pipeline.Orchestrator
	files        http.Handler
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. A nil orchestrator
// disables the rebuild endpoints.
func NewServer(proc *site.Processor, dec *decorate.Decorator, rec *stats.Recorder, orch *pipeline.Orchestrator, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		site:         proc,
		dec:          dec,
		stats:        rec,
		orchestrator: orch,
		files:        http.FileServer(http.Dir(proc.Root())),
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	r.Route("/_api", func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}
		r.Post("/decorate", s.handleDecorate)
		r.Get("/stats", s.handleStats)
		r.Post("/rebuild", s.handleRebuild)
		r.Get("/rebuild/{jobID}", s.handleRebuildStatus)
	})

	r.Get("/*", s.handleSite)
	r.Head("/*", s.handleSite)

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
