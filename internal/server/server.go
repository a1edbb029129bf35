package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/meganet/portal/internal/authz"
	"github.com/meganet/portal/internal/db"
	"github.com/meganet/portal/internal/logging"
	"github.com/meganet/portal/internal/metrics"
)

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	BasePath       string        // mount point for API routes; empty mounts at the root
	AllowAll       bool          // allow all CORS origins (dev mode)
	RequestTimeout time.Duration // zero disables the per-request timeout
	RequireToken   bool          // reject API requests without a bearer token
	MetricsPath    string        // empty disables the metrics endpoint
}

// Server is the portal HTTP server.
type Server struct {
	cfg        Config
	db         *db.DB
	log        *logging.Logger
	tokens     *authz.Tokens
	metrics    *metrics.Metrics
	router     chi.Router
	api        chi.Router
	httpServer *http.Server
}

// New creates a server. tokens and m may be nil, which disables bearer
// token verification and metrics respectively.
func New(cfg Config, database *db.DB, log *logging.Logger, tokens *authz.Tokens, m *metrics.Metrics) *Server {
	if log == nil {
		log = logging.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		db:      database,
		log:     log,
		tokens:  tokens,
		metrics: m,
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	if s.cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Flow-Warning", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
		corsOpts.AllowCredentials = false
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil && s.cfg.MetricsPath != "" {
		r.Handle(s.cfg.MetricsPath, s.metrics.Handler())
	}

	// Feature packages register on the API router via RegisterRoutes.
	tokenAuth := authz.Middleware(s.tokens, s.cfg.RequireToken, s.log)
	if base := strings.TrimRight(s.cfg.BasePath, "/"); base != "" {
		r.Route(base, func(api chi.Router) {
			api.Use(tokenAuth)
			s.api = api
		})
	} else {
		s.api = r.With(tokenAuth)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := s.db.PingContext(r.Context()); err != nil {
		s.log.Error("health check failed", "err", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Router returns the root router, which serves every route.
func (s *Server) Router() chi.Router { return s.router }

// API returns the router that feature packages register their routes on.
// It applies the bearer token middleware and honors the base path.
func (s *Server) API() chi.Router { return s.api }

// Database returns the database connection.
func (s *Server) Database() *db.DB { return s.db }

// ServerConfig returns the server configuration.
func (s *Server) ServerConfig() Config { return s.cfg }

// Addr returns the listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.log.Info("portal server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
