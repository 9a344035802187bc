package assigner

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/arnavshah/homestay-api/pkg/errors"
)

type session struct {
	engine   *Engine
	lastUsed time.Time
}

// Registry keeps the open editing sessions of the server, keyed by session ID
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*session
	now      func() time.Time
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Create registers an engine and returns its new session ID
func (r *Registry) Create(e *Engine) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.sessions[id] = &session{engine: e, lastUsed: r.now()}
	r.mu.Unlock()
	return id
}

// Get returns the engine of a session and marks it as used
func (r *Registry) Get(id string) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, appErrors.ErrSessionNotFound)
	}
	s.lastUsed = r.now()
	return s.engine, nil
}

// Remove closes a session. It reports whether the session existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

// Len returns the number of open sessions
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Prune closes sessions idle for longer than maxAge and returns how many were closed.
// Pending assignments of pruned sessions are dropped without reaching the sink.
func (r *Registry) Prune(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		if s.lastUsed.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	return removed
}
