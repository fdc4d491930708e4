package reader

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/readaloud/internal/ulid"
)

// Store is a thread-safe in-memory session registry with TTL eviction.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration

	extractor Extractor
	speaker   Speaker
	log       *slog.Logger

	// OnEvict, if set, is called with the ID of every session removed by
	// Delete or Cleanup.
	OnEvict func(id string)
}

func NewStore(ttl time.Duration, x Extractor, sp Speaker, log *slog.Logger) *Store {
	return &Store{
		sessions:  make(map[string]*Session),
		ttl:       ttl,
		extractor: x,
		speaker:   sp,
		log:       log,
	}
}

// Create registers a new empty session.
func (s *Store) Create() *Session {
	sess := NewSession(ulid.New(), s.extractor, s.speaker, s.log)
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns the session and marks it active, or nil if unknown. IDs that
// are not ULIDs are never looked up.
func (s *Store) Get(id string) *Session {
	if !ulid.Valid(id) {
		return nil
	}
	s.mu.Lock()
	sess := s.sessions[id]
	s.mu.Unlock()
	if sess != nil {
		sess.touch()
	}
	return sess
}

// Delete removes a session. It reports whether the session existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if ok && s.OnEvict != nil {
		s.OnEvict(id)
	}
	return ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup removes idle sessions past the TTL. Sessions with an extraction in
// flight are kept. It returns the number removed.
func (s *Store) Cleanup() int {
	now := time.Now()
	var evicted []string

	s.mu.Lock()
	for id, sess := range s.sessions {
		last, busy := sess.idleSince()
		if !busy && now.Sub(last) > s.ttl {
			delete(s.sessions, id)
			evicted = append(evicted, id)
		}
	}
	s.mu.Unlock()

	if s.OnEvict != nil {
		for _, id := range evicted {
			s.OnEvict(id)
		}
	}
	return len(evicted)
}

// Run calls Cleanup every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Cleanup(); n > 0 {
				s.log.Debug("expired sessions removed", "count", n, "remaining", s.Len())
			}
		}
	}
}
