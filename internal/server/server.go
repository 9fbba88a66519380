// Package server provides the HTTP server implementation for the view counter.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/devrev/viewcounter/internal/config"
	apierrors "github.com/devrev/viewcounter/internal/errors"
	"github.com/devrev/viewcounter/internal/handler"
	"github.com/devrev/viewcounter/internal/health"
	"github.com/devrev/viewcounter/internal/metrics"
	"github.com/devrev/viewcounter/internal/middleware"
	"github.com/devrev/viewcounter/internal/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server represents the HTTP server.
type Server struct {
	router       *mux.Router
	handler      http.Handler
	httpServer   *http.Server
	handlers     *handler.Handlers
	healthCheck  *health.HealthCheck
	metrics      *metrics.Metrics
	errorHandler *apierrors.Handler
	logger       *zap.Logger
	cfg          *config.Config
}

// NewServer creates a new HTTP server. m may be nil when metrics are disabled.
func NewServer(
	cfg *config.Config,
	views *service.ViewService,
	healthCheck *health.HealthCheck,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Server {
	router := mux.NewRouter()
	errorHandler := apierrors.NewHandler(logger)
	handlers := handler.NewHandlers(views, errorHandler, logger, cfg)

	s := &Server{
		router:       router,
		handlers:     handlers,
		healthCheck:  healthCheck,
		metrics:      m,
		errorHandler: errorHandler,
		logger:       logger,
		cfg:          cfg,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// The outer chain wraps the router so that CORS preflights and unmatched
	// paths pass through it too.
	chain := middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
		middleware.CORS(s.cfg.CORS.AllowedOrigins),
	)

	// Route-level metrics need the matched route, so they run inside the router.
	if s.metrics != nil {
		s.router.Use(metrics.MetricsMiddleware(s.metrics))
	}

	// Health check endpoints
	s.router.HandleFunc("/health", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)

	// View endpoints, served both bare and under /api
	for _, prefix := range []string{"", "/api"} {
		s.router.HandleFunc(prefix+"/incr", s.handlers.RecordView).Methods(http.MethodPost)
		s.router.HandleFunc(prefix+"/views", s.handlers.GetViewsBatch).Methods(http.MethodPost)
		s.router.HandleFunc(prefix+"/views/{slug}", s.handlers.GetView).Methods(http.MethodGet)
	}

	// Not found handler
	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorHandler.WriteNotFound(w, r.Header.Get("X-Request-ID"))
	})

	// Method not allowed handler
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorHandler.WriteMethodNotAllowed(w, r.Header.Get("X-Request-ID"))
	})

	s.handler = chain(s.router)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.Int("port", s.cfg.Server.Port),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// GetRouter returns the router for testing purposes.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

// GetHandler returns the http.Handler for the server, middleware included.
func (s *Server) GetHandler() http.Handler {
	return s.handler
}
