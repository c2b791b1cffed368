package health

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
)

// RecordingsDirChecker checks that the recordings directory is readable.
type RecordingsDirChecker struct {
	path string
}

// NewRecordingsDirChecker creates a checker for dir.
func NewRecordingsDirChecker(dir string) *RecordingsDirChecker {
	return &RecordingsDirChecker{path: dir}
}

// Name returns the name of the checker.
func (d *RecordingsDirChecker) Name() string {
	return "recordings_dir"
}

// Check stats and lists the directory.
func (d *RecordingsDirChecker) Check(ctx context.Context) error {
	info, err := os.Stat(d.path)
	if err != nil {
		return fmt.Errorf("recordings directory unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("recordings path %s is not a directory", d.path)
	}

	dir, err := os.Open(d.path)
	if err != nil {
		return fmt.Errorf("recordings directory unreadable: %w", err)
	}
	defer dir.Close()

	if _, err := dir.Readdirnames(1); err != nil && err != io.EOF {
		return fmt.Errorf("recordings directory unreadable: %w", err)
	}
	return nil
}

// SessionCounter reports open and permitted playback sessions.
type SessionCounter interface {
	SessionCount() int
	MaxSessions() int
}

// SessionsChecker reports degraded once sessions reach the configured limit.
type SessionsChecker struct {
	sessions SessionCounter
}

// NewSessionsChecker creates a checker over sessions.
func NewSessionsChecker(sessions SessionCounter) *SessionsChecker {
	return &SessionsChecker{sessions: sessions}
}

// Name returns the name of the checker.
func (s *SessionsChecker) Name() string {
	return "sessions"
}

// Check compares open sessions against the limit.
func (s *SessionsChecker) Check(ctx context.Context) error {
	open, limit := s.sessions.SessionCount(), s.sessions.MaxSessions()
	if limit > 0 && open >= limit {
		return &DegradedError{
			Message: "session limit reached",
			Details: map[string]interface{}{
				"open": open,
				"max":  limit,
			},
		}
	}
	return nil
}

// MemoryChecker reports degraded when the heap exceeds a byte limit.
type MemoryChecker struct {
	limit uint64
}

// NewMemoryChecker creates a memory checker. A zero limit disables it.
func NewMemoryChecker(limit uint64) *MemoryChecker {
	return &MemoryChecker{limit: limit}
}

// Name returns the name of the checker.
func (m *MemoryChecker) Name() string {
	return "memory"
}

// Check compares the live heap against the limit.
func (m *MemoryChecker) Check(ctx context.Context) error {
	if m.limit == 0 {
		return nil
	}

	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	if stats.HeapAlloc > m.limit {
		return &DegradedError{
			Message: "heap above limit",
			Details: map[string]interface{}{
				"heap_alloc": stats.HeapAlloc,
				"limit":      m.limit,
			},
		}
	}
	return nil
}
