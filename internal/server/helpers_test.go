package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/zsiec/simviz/internal/config"
	"github.com/zsiec/simviz/internal/registry"
	"github.com/zsiec/simviz/internal/rgbfile"
)

// writeRecording writes a width x height container with n frames, frame i
// filled with byte i+1, and returns its path.
func writeRecording(t *testing.T, dir, name string, width, height uint64, n int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	w, err := rgbfile.Create(path, width, height, nil)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, w.Append(bytes.Repeat([]byte{byte(i + 1)}, w.FrameSize())))
	}
	require.NoError(t, w.Close())
	return path
}

func testConfig(dir string) *config.ServerConfig {
	return &config.ServerConfig{
		HTTPPort:      8080,
		RecordingsDir: dir,
		MaxSessions:   4,
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newTestServer returns a server with routes installed over a fresh
// recordings directory.
func newTestServer(t *testing.T, mutate ...func(*config.ServerConfig)) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := testConfig(dir)
	for _, m := range mutate {
		m(cfg)
	}
	s := New(cfg, quietLogger(), registry.NewMemoryRegistry())
	s.setupRoutes()
	t.Cleanup(s.sessions.CloseAll)
	return s, dir
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func requireStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, rr.Code, rr.Body.String())
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}
