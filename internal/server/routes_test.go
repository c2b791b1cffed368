package server

import (
	"bytes"
	"fmt"
	"image/png"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/zsiec/simviz/internal/errors"
	"github.com/zsiec/simviz/internal/playback"
	"github.com/zsiec/simviz/internal/registry"
	"github.com/zsiec/simviz/internal/rgbfile"
)

func registerRecording(t *testing.T, s *Server, name string) registry.Recording {
	t.Helper()
	rr := doRequest(t, s, "POST", "/api/v1/recordings", RegisterRequest{Path: name})
	requireStatus(t, rr, http.StatusCreated)
	var rec registry.Recording
	decode(t, rr, &rec)
	return rec
}

func openSession(t *testing.T, s *Server, recordingID string) SessionInfo {
	t.Helper()
	rr := doRequest(t, s, "POST", "/api/v1/recordings/"+recordingID+"/sessions", nil)
	requireStatus(t, rr, http.StatusCreated)
	var info SessionInfo
	decode(t, rr, &info)
	return info
}

func tick(t *testing.T, s *Server, sessionID string) TickResponse {
	t.Helper()
	rr := doRequest(t, s, "POST", "/api/v1/sessions/"+sessionID+"/tick", nil)
	requireStatus(t, rr, http.StatusOK)
	var resp TickResponse
	decode(t, rr, &resp)
	return resp
}

func TestRegisterAndListRecordings(t *testing.T) {
	server, dir := newTestServer(t)
	path := writeRecording(t, dir, "heat.simviz", 4, 2, 3)

	rec := registerRecording(t, server, "heat.simviz")
	assert.Equal(t, registry.RecordingID(path), rec.ID)
	assert.Equal(t, "heat", rec.Name)
	assert.Equal(t, uint64(4), rec.Width)
	assert.Equal(t, uint64(2), rec.Height)
	assert.Equal(t, 24, rec.FrameSize)
	assert.Equal(t, 3, rec.Frames)
	assert.Equal(t, registry.StatusGrowing, rec.Status)

	rr := doRequest(t, server, "GET", "/api/v1/recordings", nil)
	requireStatus(t, rr, http.StatusOK)
	var list struct {
		Recordings []registry.Recording `json:"recordings"`
		Count      int                  `json:"count"`
	}
	decode(t, rr, &list)
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, rec.ID, list.Recordings[0].ID)

	rr = doRequest(t, server, "GET", "/api/v1/recordings/"+rec.ID, nil)
	requireStatus(t, rr, http.StatusOK)
}

func TestRegisterRecordingRejects(t *testing.T) {
	server, dir := newTestServer(t)
	writeRecording(t, dir, "ok.simviz", 2, 2, 1)

	tests := []struct {
		name     string
		body     interface{}
		wantCode int
		wantType apperrors.ErrorType
	}{
		{"empty path", RegisterRequest{}, http.StatusBadRequest, apperrors.ErrorTypeValidation},
		{"escaping path", RegisterRequest{Path: "../ok.simviz"}, http.StatusBadRequest, apperrors.ErrorTypeValidation},
		{"absolute path", RegisterRequest{Path: filepath.Join(dir, "ok.simviz")}, http.StatusBadRequest, apperrors.ErrorTypeValidation},
		{"missing file", RegisterRequest{Path: "missing.simviz"}, http.StatusNotFound, apperrors.ErrorTypeNotFound},
		{"not json", "just a string", http.StatusBadRequest, apperrors.ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doRequest(t, server, "POST", "/api/v1/recordings", tt.body)
			assert.Equal(t, tt.wantCode, rr.Code, rr.Body.String())

			var resp apperrors.ErrorResponse
			decode(t, rr, &resp)
			assert.Equal(t, tt.wantType, resp.Error.Type)
		})
	}
}

func TestRegisterCorruptRecording(t *testing.T) {
	server, dir := newTestServer(t)

	var buf bytes.Buffer
	require.NoError(t, rgbfile.WriteHeader(&buf, rgbfile.Header{Signature: 0xDEADBEEF, Width: 2, Height: 2}))
	require.NoError(t, writeFile(filepath.Join(dir, "bad.simviz"), buf.Bytes()))

	rr := doRequest(t, server, "POST", "/api/v1/recordings", RegisterRequest{Path: "bad.simviz"})
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

	var resp apperrors.ErrorResponse
	decode(t, rr, &resp)
	assert.Equal(t, apperrors.ErrorTypeFormat, resp.Error.Type)
}

func TestUnknownRecording(t *testing.T) {
	server, _ := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, doRequest(t, server, "GET", "/api/v1/recordings/nope", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(t, server, "POST", "/api/v1/recordings/nope/sessions", nil).Code)
	assert.Equal(t, http.StatusNotFound, doRequest(t, server, "DELETE", "/api/v1/recordings/nope", nil).Code)
}

func TestUnregisterRecording(t *testing.T) {
	server, dir := newTestServer(t)
	writeRecording(t, dir, "gone.simviz", 2, 2, 1)
	rec := registerRecording(t, server, "gone.simviz")

	requireStatus(t, doRequest(t, server, "DELETE", "/api/v1/recordings/"+rec.ID, nil), http.StatusNoContent)
	assert.Equal(t, http.StatusNotFound, doRequest(t, server, "GET", "/api/v1/recordings/"+rec.ID, nil).Code)
}

func TestSessionPlaybackDiscoversEnd(t *testing.T) {
	server, dir := newTestServer(t)
	writeRecording(t, dir, "run.simviz", 2, 2, 3)
	rec := registerRecording(t, server, "run.simviz")

	session := openSession(t, server, rec.ID)
	assert.Equal(t, rec.ID, session.RecordingID)
	assert.Equal(t, 0, session.State.Current)
	assert.False(t, session.State.Paused)
	assert.Nil(t, session.State.UpperBound)

	assert.True(t, tick(t, server, session.ID).Advanced)
	assert.True(t, tick(t, server, session.ID).Advanced)

	resp := tick(t, server, session.ID)
	assert.False(t, resp.Advanced)
	assert.True(t, resp.State.Paused)
	assert.True(t, resp.State.AtEnd)
	require.NotNil(t, resp.State.UpperBound)
	assert.Equal(t, 2, *resp.State.UpperBound)
	assert.Equal(t, 2, resp.State.Current)

	// The discovered length reaches the catalog.
	rr := doRequest(t, server, "GET", "/api/v1/recordings/"+rec.ID, nil)
	var updated registry.Recording
	decode(t, rr, &updated)
	assert.Equal(t, registry.StatusComplete, updated.Status)
	assert.Equal(t, 3, updated.Frames)

	// Re-registering keeps the completed status.
	again := registerRecording(t, server, "run.simviz")
	assert.Equal(t, registry.StatusComplete, again.Status)
}

func TestSessionCommands(t *testing.T) {
	server, dir := newTestServer(t)
	writeRecording(t, dir, "cmd.simviz", 2, 2, 4)
	rec := registerRecording(t, server, "cmd.simviz")
	session := openSession(t, server, rec.ID)
	base := "/api/v1/sessions/" + session.ID

	send := func(body interface{}) SessionInfo {
		t.Helper()
		rr := doRequest(t, server, "POST", base+"/commands", body)
		requireStatus(t, rr, http.StatusOK)
		var info SessionInfo
		decode(t, rr, &info)
		return info
	}

	info := send(playback.TogglePause())
	assert.True(t, info.State.Paused)

	// Seeking past what is known clamps to the current index.
	info = send(playback.Seek(3))
	assert.Equal(t, 0, info.State.Current)

	tick(t, server, session.ID)
	info = send(playback.StepForward())
	assert.Equal(t, 1, info.State.Current)
	resp := tick(t, server, session.ID)
	assert.True(t, resp.Advanced)

	info = send(map[string]interface{}{"type": "step-backward"})
	assert.Equal(t, 0, info.State.Current)

	info = send(playback.SetPaused(false))
	assert.False(t, info.State.Paused)

	rr := doRequest(t, server, "POST", base+"/commands", map[string]interface{}{"type": "rewind"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(t, server, "POST", base+"/commands", map[string]interface{}{"type": "seek"})
	assert.Equal(t, http.StatusBadRequest, rr.Code, "seek without index")
}

func TestSessionFrame(t *testing.T) {
	server, dir := newTestServer(t)
	writeRecording(t, dir, "frame.simviz", 3, 2, 2)
	rec := registerRecording(t, server, "frame.simviz")
	session := openSession(t, server, rec.ID)
	base := "/api/v1/sessions/" + session.ID

	rr := doRequest(t, server, "GET", base+"/frame?format=raw", nil)
	requireStatus(t, rr, http.StatusOK)
	assert.Equal(t, "application/octet-stream", rr.Header().Get("Content-Type"))
	assert.Equal(t, "0", rr.Header().Get("X-Frame-Index"))
	assert.Equal(t, bytes.Repeat([]byte{1}, 18), rr.Body.Bytes())

	tick(t, server, session.ID)

	rr = doRequest(t, server, "GET", base+"/frame", nil)
	requireStatus(t, rr, http.StatusOK)
	assert.Equal(t, "image/png", rr.Header().Get("Content-Type"))
	assert.Equal(t, "1", rr.Header().Get("X-Frame-Index"))

	img, err := png.Decode(bytes.NewReader(rr.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{2, 2, 2}, []uint32{r >> 8, g >> 8, b >> 8})

	rr = doRequest(t, server, "GET", base+"/frame?format=gif", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSessionLifecycle(t *testing.T) {
	server, dir := newTestServer(t)
	writeRecording(t, dir, "life.simviz", 2, 2, 1)
	rec := registerRecording(t, server, "life.simviz")

	session := openSession(t, server, rec.ID)
	base := "/api/v1/sessions/" + session.ID

	rr := doRequest(t, server, "GET", base, nil)
	requireStatus(t, rr, http.StatusOK)
	var info SessionInfo
	decode(t, rr, &info)
	assert.Equal(t, session.ID, info.ID)
	assert.Equal(t, 1, server.Sessions().SessionCount())

	requireStatus(t, doRequest(t, server, "DELETE", base, nil), http.StatusNoContent)
	assert.Equal(t, 0, server.Sessions().SessionCount())

	for _, probe := range []struct{ method, path string }{
		{"GET", base},
		{"DELETE", base},
		{"POST", base + "/tick"},
		{"GET", base + "/frame"},
	} {
		assert.Equal(t, http.StatusNotFound, doRequest(t, server, probe.method, probe.path, nil).Code, fmt.Sprintf("%s %s", probe.method, probe.path))
	}
}

func TestSessionLimit(t *testing.T) {
	server, dir := newTestServer(t)
	writeRecording(t, dir, "busy.simviz", 2, 2, 1)
	rec := registerRecording(t, server, "busy.simviz")

	for i := 0; i < server.Sessions().MaxSessions(); i++ {
		openSession(t, server, rec.ID)
	}

	rr := doRequest(t, server, "POST", "/api/v1/recordings/"+rec.ID+"/sessions", nil)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)

	// The sessions check turns degraded at the limit.
	rr = doRequest(t, server, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"degraded"`)
}
