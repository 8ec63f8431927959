// Package storage provides session persistence implementations.
package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/hammamikhairi/calmcoach/internal/domain"
	"github.com/hammamikhairi/calmcoach/internal/logger"
)

// Compile-time interface check.
var _ domain.SessionStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory session store. Sessions are copied on the
// way in and out so callers never share state. Safe for concurrent access.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*domain.Session
	log      *logger.Logger
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore(log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*domain.Session),
		log:      log,
	}
}

// Save persists a session. Overwrites if it already exists.
func (s *MemoryStore) Save(ctx context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Debug("saving session %s (module=%s, status=%s)", session.ID, session.Module, session.Status)
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

// Load retrieves a session by ID.
func (s *MemoryStore) Load(ctx context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		s.log.Debug("session not found: %s", id)
		return nil, domain.ErrNotFound
	}
	cp := *sess
	return &cp, nil
}

// Delete removes a session by ID.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.sessions, id)
	s.log.Debug("deleted session %s", id)
	return nil
}

// ListActive returns running sessions.
func (s *MemoryStore) ListActive(ctx context.Context) ([]*domain.Session, error) {
	return s.filter(func(sess *domain.Session) bool {
		return sess.Status == domain.SessionActive
	}), nil
}

// List returns every session, oldest first.
func (s *MemoryStore) List(ctx context.Context) ([]*domain.Session, error) {
	return s.filter(func(*domain.Session) bool { return true }), nil
}

// Prune drops finished sessions beyond the newest keep. Running sessions
// are never removed.
func (s *MemoryStore) Prune(ctx context.Context, keep int) int {
	finished := s.filter(func(sess *domain.Session) bool {
		return sess.Status != domain.SessionActive
	})
	if len(finished) <= keep {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	drop := finished[:len(finished)-keep]
	for _, sess := range drop {
		delete(s.sessions, sess.ID)
	}
	s.log.Debug("pruned %d finished sessions", len(drop))
	return len(drop)
}

func (s *MemoryStore) filter(keep func(*domain.Session) bool) []*domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Session
	for _, sess := range s.sessions {
		if keep(sess) {
			cp := *sess
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}
