package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zsiec/simviz/internal/errors"
	"github.com/zsiec/simviz/internal/logger"
	"github.com/zsiec/simviz/internal/metrics"
	"github.com/zsiec/simviz/internal/playback"
	"github.com/zsiec/simviz/internal/registry"
)

// Session is one client's playback of a registered recording. The server
// drives the engine directly: each tick request advances it once.
type Session struct {
	ID          string
	RecordingID string
	CreatedAt   time.Time

	engine *playback.Engine

	mu       sync.Mutex
	lastUsed time.Time
	// reported is set once the discovered frame count reached the registry.
	reported bool
}

// Engine returns the session's playback engine.
func (s *Session) Engine() *playback.Engine {
	return s.engine
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// SessionInfo is the JSON view of a session.
type SessionInfo struct {
	ID          string         `json:"id"`
	RecordingID string         `json:"recording_id"`
	CreatedAt   time.Time      `json:"created_at"`
	State       playback.State `json:"state"`
}

// Info snapshots the session.
func (s *Session) Info() SessionInfo {
	return SessionInfo{
		ID:          s.ID,
		RecordingID: s.RecordingID,
		CreatedAt:   s.CreatedAt,
		State:       s.engine.State(),
	}
}

// SessionManager owns the open playback sessions.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	max      int
	registry registry.Registry
	logger   logger.Logger
}

// NewSessionManager creates a manager allowing at most max open sessions.
func NewSessionManager(reg registry.Registry, max int, log logger.Logger) *SessionManager {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &SessionManager{
		sessions: make(map[string]*Session),
		max:      max,
		registry: reg,
		logger:   log.WithField("component", "sessions"),
	}
}

// Open starts a session on rec.
func (m *SessionManager) Open(rec *registry.Recording, opts ...playback.Option) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.max > 0 && len(m.sessions) >= m.max {
		return nil, errors.New(errors.ErrorTypeRateLimit, "session limit reached", http.StatusTooManyRequests).WithDetails(map[string]interface{}{
			"max_sessions": m.max,
		})
	}

	opts = append([]playback.Option{playback.WithLogger(m.logger), playback.WithName(rec.Name)}, opts...)
	engine, err := playback.Open(rec.Path, opts...)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s := &Session{
		ID:          uuid.New().String(),
		RecordingID: rec.ID,
		CreatedAt:   now,
		engine:      engine,
		lastUsed:    now,
	}
	m.sessions[s.ID] = s
	metrics.SetActiveSessions(len(m.sessions))

	m.logger.WithFields(map[string]interface{}{
		"session_id":   s.ID,
		"recording_id": rec.ID,
	}).Info("Session opened")

	return s, nil
}

// Get returns the session with id.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, errors.NewNotFoundError("session")
	}
	s.touch()
	return s, nil
}

// Tick advances the session once. When the tick discovered the end of the
// recording the frame count is reported to the registry.
func (m *SessionManager) Tick(ctx context.Context, s *Session) bool {
	advanced := s.engine.Tick()

	upper, ok := s.engine.UpperBound()
	if !ok {
		return advanced
	}

	s.mu.Lock()
	report := !s.reported
	s.reported = true
	s.mu.Unlock()

	if report && m.registry != nil {
		if err := m.registry.MarkComplete(ctx, s.RecordingID, upper+1); err != nil {
			m.logger.WithError(err).WithField("recording_id", s.RecordingID).Warn("Failed to mark recording complete")
		}
	}
	return advanced
}

// Close closes and forgets the session with id.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	count := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return errors.NewNotFoundError("session")
	}
	metrics.SetActiveSessions(count)

	m.logger.WithField("session_id", id).Info("Session closed")
	return s.engine.Close()
}

// CloseAll closes every open session.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		_ = s.engine.Close()
	}
	metrics.SetActiveSessions(0)
}

// Reap closes sessions unused for longer than idle and returns how many it
// closed.
func (m *SessionManager) Reap(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	m.mu.RLock()
	var stale []string
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	closed := 0
	for _, id := range stale {
		if err := m.Close(id); err == nil {
			closed++
		}
	}
	if closed > 0 {
		m.logger.WithField("count", closed).Info("Closed idle sessions")
	}
	return closed
}

// StartReaper closes idle sessions every interval until ctx is done.
func (m *SessionManager) StartReaper(ctx context.Context, idle, interval time.Duration) {
	metrics.IncrementGoroutineCreated("session_reaper")
	defer metrics.IncrementGoroutineDestroyed("session_reaper")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Reap(idle)
		}
	}
}

// SessionCount returns the number of open sessions.
func (m *SessionManager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// MaxSessions returns the session limit.
func (m *SessionManager) MaxSessions() int {
	return m.max
}
