package server

import (
	"encoding/json"
	stderrors "errors"
	"image/png"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/zsiec/simviz/internal/errors"
	"github.com/zsiec/simviz/internal/metrics"
	"github.com/zsiec/simviz/internal/playback"
	"github.com/zsiec/simviz/internal/registry"
	"github.com/zsiec/simviz/internal/rgbfile"
)

// RegisterRequest names a container inside the recordings directory.
type RegisterRequest struct {
	Path string `json:"path"`
}

// TickResponse reports the outcome of one tick.
type TickResponse struct {
	Advanced bool           `json:"advanced"`
	State    playback.State `json:"state"`
}

func (s *Server) handleListRecordings(w http.ResponseWriter, r *http.Request) {
	recs, err := s.registry.List(r.Context())
	if err != nil {
		s.writeError(w, r, errors.WrapInternalError(err, "failed to list recordings"))
		return
	}
	metrics.SetRegisteredRecordings(len(recs))

	s.writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"recordings": recs,
		"count":      len(recs),
	})
}

func (s *Server) handleRegisterRecording(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, errors.NewValidationError("invalid request body"))
		return
	}
	if req.Path == "" || !filepath.IsLocal(req.Path) {
		s.writeError(w, r, errors.NewValidationError("path must be relative to the recordings directory").WithDetails(map[string]interface{}{
			"path": req.Path,
		}))
		return
	}

	rec, err := registry.Inspect(filepath.Join(s.config.RecordingsDir, req.Path))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// Keep what earlier readers learned about the length.
	if prev, err := s.registry.Get(r.Context(), rec.ID); err == nil && prev.Status == registry.StatusComplete {
		rec.Status = prev.Status
		rec.Frames = prev.Frames
	}

	if err := s.registry.Register(r.Context(), rec); err != nil {
		s.writeError(w, r, errors.WrapInternalError(err, "failed to register recording"))
		return
	}

	s.log.WithFields(map[string]interface{}{
		"recording_id": rec.ID,
		"path":         rec.Path,
	}).Info("Recording registered")

	s.writeJSON(w, r, http.StatusCreated, rec)
}

func (s *Server) handleGetRecording(w http.ResponseWriter, r *http.Request) {
	rec, err := s.lookupRecording(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, rec)
}

func (s *Server) handleUnregisterRecording(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.registry.Unregister(r.Context(), id); err != nil {
		s.writeError(w, r, registryError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	rec, err := s.lookupRecording(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	session, err := s.sessions.Open(rec)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.writeJSON(w, r, http.StatusCreated, session.Info())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(mux.Vars(r)["sid"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, session.Info())
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(mux.Vars(r)["sid"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(mux.Vars(r)["sid"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var cmd playback.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		s.writeError(w, r, errors.NewValidationError("invalid command").WithDetails(map[string]interface{}{
			"reason": err.Error(),
		}))
		return
	}

	session.Engine().Handle(cmd)
	s.writeJSON(w, r, http.StatusOK, session.Info())
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(mux.Vars(r)["sid"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	advanced := s.sessions.Tick(r.Context(), session)
	s.writeJSON(w, r, http.StatusOK, TickResponse{
		Advanced: advanced,
		State:    session.Engine().State(),
	})
}

// handleFrame serves the displayed frame as PNG, flipped so row 0 is at the
// bottom, or as the raw payload with ?format=raw.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(mux.Vars(r)["sid"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	engine := session.Engine()
	frame := engine.CopyFrame()
	if len(frame.Data) == 0 {
		s.writeError(w, r, errors.NewConflictError("session is closed"))
		return
	}
	header := engine.Header()

	w.Header().Set("X-Frame-Index", strconv.Itoa(frame.Index))
	w.Header().Set("X-Frame-At-End", strconv.FormatBool(frame.AtEnd))
	w.Header().Set("Cache-Control", "no-store")

	switch r.URL.Query().Get("format") {
	case "", "png":
		img := rgbfile.ToImage(frame.Data, int(header.Width), int(header.Height), true)
		if img == nil {
			s.writeError(w, r, errors.NewInternalError("frame does not match header"))
			return
		}
		w.Header().Set("Content-Type", "image/png")
		if err := png.Encode(w, img); err != nil {
			s.log.WithError(err).Warn("Failed to encode frame")
		}
	case "raw":
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.Itoa(len(frame.Data)))
		if _, err := w.Write(frame.Data); err != nil {
			s.log.WithError(err).Warn("Failed to write frame")
		}
	default:
		s.writeError(w, r, errors.NewValidationError("format must be png or raw"))
	}
}

func (s *Server) lookupRecording(r *http.Request) (*registry.Recording, error) {
	rec, err := s.registry.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		return nil, registryError(err)
	}
	return rec, nil
}

// registryError maps registry failures onto API errors.
func registryError(err error) error {
	if stderrors.Is(err, registry.ErrRecordingNotFound) {
		return errors.NewNotFoundError("recording")
	}
	return errors.WrapInternalError(err, "registry unavailable")
}

// writeJSON is a helper to write JSON responses
func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.WithError(err).WithField("path", r.URL.Path).Error("Failed to encode response")
	}
}

// writeError is a helper to write error responses
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.errorHandler.HandleError(w, r, err)
}
