package server

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/simviz/internal/config"
	apperrors "github.com/zsiec/simviz/internal/errors"
	"github.com/zsiec/simviz/internal/health"
	"github.com/zsiec/simviz/pkg/version"
)

type stubChecker struct {
	name string
	err  error
}

func (c stubChecker) Name() string                    { return c.name }
func (c stubChecker) Check(ctx context.Context) error { return c.err }

func TestNew(t *testing.T) {
	cfg := testConfig(t.TempDir())
	log := quietLogger()

	server := New(cfg, log, nil)

	assert.NotNil(t, server)
	assert.Equal(t, cfg, server.config)
	assert.Equal(t, log, server.logger)
	assert.NotNil(t, server.registry, "memory registry used when none given")
	assert.NotNil(t, server.router)
	assert.NotNil(t, server.healthMgr)
	assert.NotNil(t, server.errorHandler)
	assert.Nil(t, server.limiter)
	assert.Equal(t, 4, server.Sessions().MaxSessions())
}

func TestNewWithRateLimit(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.RequestRate = 5
	cfg.RequestBurst = 2

	server := New(cfg, quietLogger(), nil)
	require.NotNil(t, server.limiter)
	assert.Equal(t, 2, server.limiter.Burst())
}

func TestGetRouter(t *testing.T) {
	server := New(testConfig(t.TempDir()), quietLogger(), nil)
	assert.IsType(t, &mux.Router{}, server.GetRouter())
}

func TestHealthEndpoints(t *testing.T) {
	server, _ := newTestServer(t)

	for _, path := range []string{"/health", "/ready", "/live"} {
		rr := doRequest(t, server, "GET", path, nil)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.Equal(t, "application/json", rr.Header().Get("Content-Type"), path)
	}

	var resp health.Response
	decode(t, doRequest(t, server, "GET", "/health", nil), &resp)
	assert.Contains(t, resp.Checks, "recordings_dir")
	assert.Contains(t, resp.Checks, "sessions")
	assert.Contains(t, resp.Checks, "memory")
}

func TestRegisterHealthChecker(t *testing.T) {
	server, _ := newTestServer(t)
	server.RegisterHealthChecker(stubChecker{name: "redis", err: errors.New("connection refused")})

	rr := doRequest(t, server, "GET", "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	var resp health.Response
	decode(t, rr, &resp)
	assert.Equal(t, health.StatusDown, resp.Checks["redis"].Status)
}

func TestVersionEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doRequest(t, server, "GET", "/version", nil)
	requireStatus(t, rr, http.StatusOK)

	var info version.Info
	decode(t, rr, &info)
	assert.Equal(t, version.GetInfo().Version, info.Version)
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t)

	rr := doRequest(t, server, "GET", "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	var resp apperrors.ErrorResponse
	decode(t, rr, &resp)
	assert.Equal(t, apperrors.ErrorTypeNotFound, resp.Error.Type)

	rr = doRequest(t, server, "PUT", "/version", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRegisterRoutes(t *testing.T) {
	server := New(testConfig(t.TempDir()), quietLogger(), nil)
	server.RegisterRoutes(func(r *mux.Router) {
		r.HandleFunc("/extra", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}).Methods("GET")
	})
	server.setupRoutes()

	rr := doRequest(t, server, "GET", "/extra", nil)
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestShutdownWithoutStart(t *testing.T) {
	server := New(testConfig(t.TempDir()), quietLogger(), nil)
	assert.NoError(t, server.Shutdown())
}

func TestStartAndShutdown(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.HTTPPort = 18573
	cfg.ShutdownTimeout = time.Second
	server := New(cfg, quietLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://127.0.0.1:18573/live")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestConfigZeroValuesAccepted(t *testing.T) {
	server := New(&config.ServerConfig{RecordingsDir: t.TempDir()}, quietLogger(), nil)
	server.setupRoutes()
	rr := doRequest(t, server, "GET", "/live", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
