// Package registry catalogs simviz recordings so sessions can be opened by
// ID. Entries live in Redis when configured, otherwise in memory.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrRecordingNotFound is returned when a recording is not in the registry
	ErrRecordingNotFound = errors.New("recording not found")
)

// Registry defines the interface for recording catalog operations
type Registry interface {
	// Register adds a recording, or refreshes it keeping CreatedAt
	Register(ctx context.Context, rec *Recording) error

	// Unregister removes a recording
	Unregister(ctx context.Context, id string) error

	// Get retrieves a recording by ID
	Get(ctx context.Context, id string) (*Recording, error)

	// List returns all recordings ordered by name
	List(ctx context.Context) ([]*Recording, error)

	// MarkComplete records the frame count discovered by a reader
	MarkComplete(ctx context.Context, id string, frames int) error

	// Close closes any resources held by the registry
	Close() error
}

func notFound(id string) error {
	return fmt.Errorf("%w: %s", ErrRecordingNotFound, id)
}

func sortByName(recs []*Recording) {
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Name != recs[j].Name {
			return recs[i].Name < recs[j].Name
		}
		return recs[i].ID < recs[j].ID
	})
}

// MemoryRegistry is an in-memory Registry for single-process runs and tests.
type MemoryRegistry struct {
	mu         sync.RWMutex
	recordings map[string]*Recording
}

// NewMemoryRegistry returns an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{recordings: make(map[string]*Recording)}
}

func (m *MemoryRegistry) Register(ctx context.Context, rec *Recording) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if existing, ok := m.recordings[rec.ID]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	stored := *rec
	m.recordings[rec.ID] = &stored
	return nil
}

func (m *MemoryRegistry) Unregister(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.recordings[id]; !ok {
		return notFound(id)
	}
	delete(m.recordings, id)
	return nil
}

func (m *MemoryRegistry) Get(ctx context.Context, id string) (*Recording, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.recordings[id]
	if !ok {
		return nil, notFound(id)
	}
	copied := *rec
	return &copied, nil
}

func (m *MemoryRegistry) List(ctx context.Context) ([]*Recording, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := make([]*Recording, 0, len(m.recordings))
	for _, rec := range m.recordings {
		copied := *rec
		recs = append(recs, &copied)
	}
	sortByName(recs)
	return recs, nil
}

func (m *MemoryRegistry) MarkComplete(ctx context.Context, id string, frames int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.recordings[id]
	if !ok {
		return notFound(id)
	}
	rec.Frames = frames
	rec.Status = StatusComplete
	rec.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryRegistry) Close() error {
	return nil
}
