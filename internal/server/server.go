// Package server exposes the router over HTTP: a single inspect-or-execute
// endpoint, a status endpoint, health, metrics, and API docs.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/promptpilot/ai-router/internal/decisionlog"
	"github.com/promptpilot/ai-router/internal/features"
	"github.com/promptpilot/ai-router/internal/metrics"
	"github.com/promptpilot/ai-router/internal/middleware"
	"github.com/promptpilot/ai-router/internal/orchestrator"
	"github.com/promptpilot/ai-router/internal/registry"
	"github.com/promptpilot/ai-router/internal/routing"
	"github.com/promptpilot/ai-router/internal/types"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port            string                      `yaml:"port"`
	ReadTimeout     time.Duration               `yaml:"read_timeout"`
	WriteTimeout    time.Duration               `yaml:"write_timeout"`
	MaxHeaderBytes  int                         `yaml:"max_header_bytes"`
	InspectCacheTTL time.Duration               `yaml:"inspect_cache_ttl"`
	Validation      middleware.ValidationConfig `yaml:"validation"`
	RateLimit       middleware.RateLimitConfig  `yaml:"rate_limit"`
	DocsPath        string                      `yaml:"docs_path"`
}

// Server wires the routing pipeline to HTTP.
type Server struct {
	extractor  *features.Extractor
	router     *routing.Router
	orch       *orchestrator.Orchestrator
	registry   *registry.Registry
	decisions  *decisionlog.Logger
	metrics    *metrics.Metrics
	validation *middleware.Validation
	rateLimit  *middleware.RateLimit
	logger     *logrus.Logger
	config     *Config

	// inspectCache memoizes inspect-only responses; entries are keyed on the
	// request plus the registry generation so a catalog reload invalidates
	// them naturally.
	inspectCache *gocache.Cache

	httpServer *http.Server
}

// Deps bundles the constructed pipeline for NewServer.
type Deps struct {
	Extractor    *features.Extractor
	Router       *routing.Router
	Orchestrator *orchestrator.Orchestrator
	Registry     *registry.Registry
	Decisions    *decisionlog.Logger
	Metrics      *metrics.Metrics
}

// NewServer creates a server instance.
func NewServer(deps Deps, config *Config, logger *logrus.Logger) (*Server, error) {
	validation, err := middleware.NewValidation(config.Validation, logger)
	if err != nil {
		return nil, err
	}

	ttl := config.InspectCacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &Server{
		extractor:    deps.Extractor,
		router:       deps.Router,
		orch:         deps.Orchestrator,
		registry:     deps.Registry,
		decisions:    deps.Decisions,
		metrics:      deps.Metrics,
		validation:   validation,
		rateLimit:    middleware.NewRateLimit(config.RateLimit, logger),
		logger:       logger,
		config:       config,
		inspectCache: gocache.New(ttl, 2*ttl),
	}, nil
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	r := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           ":" + s.config.Port,
		Handler:        r,
		ReadTimeout:    s.config.ReadTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}
	// No WriteTimeout: streaming responses stay open for the duration of the
	// upstream generation.

	s.logger.WithField("port", s.config.Port).Info("Starting AI router server")
	return s.httpServer.ListenAndServe()
}

// Stop shuts the HTTP server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping AI router server")
	s.rateLimit.Stop()
	return s.httpServer.Shutdown(ctx)
}

// Handler builds the configured route tree. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	r.Use(s.loggingMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.rateLimit.Middleware)
	r.Use(s.contentTypeMiddleware)
	r.Use(s.validation.Middleware)

	api := r.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/route", s.handleRoute).Methods("POST")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	s.setupDocsRoutes(r)

	return r
}

// Middleware

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		elapsed := time.Since(start)
		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": elapsed.Milliseconds(),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
		s.metrics.ObserveRequest(r.URL.Path, strconv.Itoa(wrapped.statusCode), elapsed)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			contentType := r.Header.Get("Content-Type")
			if contentType != "" && contentType != "application/json" {
				s.writeError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Helpers

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSON(w, statusCode, types.ErrorResponse{Success: false, Error: message})
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the logging wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
