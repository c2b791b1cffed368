package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/zsiec/simviz/internal/config"
	"github.com/zsiec/simviz/internal/errors"
	"github.com/zsiec/simviz/internal/health"
	"github.com/zsiec/simviz/internal/logger"
	"github.com/zsiec/simviz/internal/registry"
)

// Server serves the recording catalog and playback sessions over HTTP.
type Server struct {
	config       *config.ServerConfig
	router       *mux.Router
	httpServer   *http.Server
	logger       *logrus.Logger
	log          logger.Logger
	registry     registry.Registry
	sessions     *SessionManager
	healthMgr    *health.Manager
	errorHandler *errors.ErrorHandler
	limiter      *rate.Limiter

	// Additional handlers can be registered
	additionalRoutes []func(*mux.Router)
}

// New creates a new server instance. reg may be nil, in which case an
// in-memory registry is used.
func New(cfg *config.ServerConfig, log *logrus.Logger, reg registry.Registry) *Server {
	if reg == nil {
		reg = registry.NewMemoryRegistry()
	}
	base := logger.FromLogrus(log)

	s := &Server{
		config:           cfg,
		router:           mux.NewRouter(),
		logger:           log,
		log:              base,
		registry:         reg,
		sessions:         NewSessionManager(reg, cfg.MaxSessions, base),
		healthMgr:        health.NewManager(base),
		errorHandler:     errors.NewErrorHandler(log),
		additionalRoutes: make([]func(*mux.Router), 0),
	}
	if cfg.RequestRate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestRate), cfg.RequestBurst)
	}

	// Register health checkers
	s.registerHealthCheckers()

	return s
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	// Start periodic health checks
	go s.healthMgr.StartPeriodicChecks(ctx, 30*time.Second)

	if s.config.SessionIdle > 0 {
		go s.sessions.StartReaper(ctx, s.config.SessionIdle, s.config.SessionIdle/2)
	}

	s.logger.WithField("port", s.config.HTTPPort).Info("Starting HTTP server")

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed to start: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops accepting requests, waits for in-flight ones up to the
// shutdown timeout and closes every session.
func (s *Server) Shutdown() error {
	s.logger.Info("Shutting down HTTP server")
	defer s.sessions.CloseAll()

	if s.httpServer == nil {
		return nil
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("HTTP server shutdown complete")
	return nil
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Apply global middleware
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(logger.RequestLoggerMiddleware(s.log))
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.metricsMiddleware)
	s.router.Use(s.corsMiddleware)

	// Health endpoints
	healthHandler := health.NewHandler(s.healthMgr)
	s.router.HandleFunc("/health", healthHandler.HandleHealth).Methods("GET")
	s.router.HandleFunc("/ready", healthHandler.HandleReady).Methods("GET")
	s.router.HandleFunc("/live", healthHandler.HandleLive).Methods("GET")
	s.router.HandleFunc("/version", healthHandler.HandleVersion).Methods("GET")

	// API routes
	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.rateLimitMiddleware)

	api.HandleFunc("/recordings", s.handleListRecordings).Methods("GET")
	api.HandleFunc("/recordings", s.handleRegisterRecording).Methods("POST")
	api.HandleFunc("/recordings/{id}", s.handleGetRecording).Methods("GET")
	api.HandleFunc("/recordings/{id}", s.handleUnregisterRecording).Methods("DELETE")
	api.HandleFunc("/recordings/{id}/sessions", s.handleOpenSession).Methods("POST")

	api.HandleFunc("/sessions/{sid}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{sid}", s.handleCloseSession).Methods("DELETE")
	api.HandleFunc("/sessions/{sid}/commands", s.handleCommand).Methods("POST")
	api.HandleFunc("/sessions/{sid}/tick", s.handleTick).Methods("POST")
	api.HandleFunc("/sessions/{sid}/frame", s.handleFrame).Methods("GET")

	// Register any additional routes
	for _, registerFunc := range s.additionalRoutes {
		registerFunc(s.router)
	}

	// 404 handler
	s.router.NotFoundHandler = http.HandlerFunc(s.errorHandler.HandleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.errorHandler.HandleMethodNotAllowed)
}

// registerHealthCheckers registers the checkers every server carries.
// Backend checkers such as Redis are added by the caller.
func (s *Server) registerHealthCheckers() {
	s.healthMgr.Register(health.NewRecordingsDirChecker(s.config.RecordingsDir))
	s.healthMgr.Register(health.NewSessionsChecker(s.sessions))
	s.healthMgr.Register(health.NewMemoryChecker(0))
}

// RegisterHealthChecker adds a checker to the server's health manager.
func (s *Server) RegisterHealthChecker(checker health.Checker) {
	s.healthMgr.Register(checker)
}

// RegisterRoutes adds additional route handlers to the server
func (s *Server) RegisterRoutes(registerFunc func(*mux.Router)) {
	s.additionalRoutes = append(s.additionalRoutes, registerFunc)
}

// Sessions returns the session manager.
func (s *Server) Sessions() *SessionManager {
	return s.sessions
}

// GetRouter returns the router for testing.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}
