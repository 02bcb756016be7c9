// Package registry owns the mapping from session id to session state.
package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/aether-games/echoes-engine/internal/domain"
)

// Registry is the lifecycle contract for sessions. Durable backends
// implement the same interface.
type Registry interface {
	// Create registers a new pending session. It fails with
	// domain.ErrAlreadyExists when a live (non-terminal) session exists for id.
	Create(id string) (*domain.Session, error)
	// Get returns the session for id, if any.
	Get(id string) (*domain.Session, bool)
	// Cancel marks the session cancelled.
	Cancel(id string) error
	// Remove tears the session down.
	Remove(id string)
	// List returns all known sessions ordered by id.
	List() []*domain.Session
}

// Memory is an in-process Registry. The map lock covers only insert, remove
// and lookup; session state is guarded by each session's own lock.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	now      func() time.Time
}

// NewMemory creates an empty in-memory registry.
func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*domain.Session),
		now:      time.Now,
	}
}

// Create implements Registry.
func (m *Memory) Create(id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[id]; ok {
		existing.Lock()
		terminal := existing.Status.Terminal()
		existing.Unlock()
		if !terminal {
			return nil, domain.ErrAlreadyExists
		}
	}
	s := domain.NewSession(id, m.now())
	m.sessions[id] = s
	return s, nil
}

// Get implements Registry.
func (m *Memory) Get(id string) (*domain.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Cancel implements Registry.
func (m *Memory) Cancel(id string) error {
	s, ok := m.Get(id)
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.Lock()
	defer s.Unlock()
	if s.Status.Terminal() {
		return domain.ErrNoGame
	}
	s.Cancel()
	return nil
}

// Remove implements Registry.
func (m *Memory) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// List implements Registry.
func (m *Memory) List() []*domain.Session {
	m.mu.RLock()
	out := make([]*domain.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
