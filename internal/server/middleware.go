package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/zsiec/simviz/internal/errors"
	"github.com/zsiec/simviz/internal/logger"
)

var (
	// Prometheus metrics
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "simviz_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "simviz_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "simviz_http_requests_in_flight",
		Help: "Number of HTTP requests currently being processed",
	})
)

// requestIDMiddleware adds a unique request ID to each request
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(logger.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		// Set request ID in response header
		w.Header().Set(logger.RequestIDHeader, requestID)

		// Add to request header for downstream use
		r.Header.Set(logger.RequestIDHeader, requestID)

		next.ServeHTTP(w, r)
	})
}

// routeTemplate labels metrics by route so session IDs do not explode the
// label set.
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// metricsMiddleware tracks request metrics
func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := r.URL.Path

		// Don't track metrics for health endpoints
		if strings.HasPrefix(path, "/health") || strings.HasPrefix(path, "/ready") || strings.HasPrefix(path, "/live") {
			next.ServeHTTP(w, r)
			return
		}

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		// Wrap response writer to capture status code
		rw := logger.NewResponseWriter(w)

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := fmt.Sprintf("%d", rw.StatusCode())
		route := routeTemplate(r)

		httpRequestDuration.WithLabelValues(r.Method, route, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(r.Method, route, status).Inc()

		logger.FromContext(r.Context()).WithFields(map[string]interface{}{
			"status":      rw.StatusCode(),
			"duration_ms": duration * 1000,
			"bytes":       rw.BytesWritten(),
		}).Info("Request completed")
	})
}

// corsMiddleware handles CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		// Handle preflight requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware recovers from panics
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.log.WithFields(map[string]interface{}{
					"error":      err,
					"request_id": r.Header.Get(logger.RequestIDHeader),
					"method":     r.Method,
					"path":       r.URL.Path,
				}).Error("Panic recovered")

				s.errorHandler.HandleError(w, r, errors.NewInternalError("An unexpected error occurred"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware rejects API requests above the configured rate.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			s.errorHandler.HandleError(w, r, errors.NewRateLimitError())
			return
		}
		next.ServeHTTP(w, r)
	})
}
