// Package store keeps all session state in memory. Each session is a unit
// of mutual exclusion: Acquire hands out the session together with a release
// func, and all work for one session id serializes on that lock. Distinct
// sessions proceed fully in parallel.
package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/edaccel/tutor/internal/model"
)

const sweepInterval = 10 * time.Minute

// DefaultTTL is the default idle time before a session is swept.
const DefaultTTL = 2 * time.Hour

type entry struct {
	mu      sync.Mutex
	session *model.Session
}

// Store is the in-memory session store. There is no durability: session
// state lives for the lifetime of one store instance and is dropped after
// the inactivity TTL.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	ttl      time.Duration
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a store that expires sessions idle longer than ttl. A ttl of
// zero disables expiry. Close stops the background sweeper.
func New(ttl time.Duration) *Store {
	s := &Store{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		done:     make(chan struct{}),
	}
	if ttl > 0 {
		go s.sweepLoop()
	}
	return s
}

// Close stops the expiry sweeper.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.done) })
}

// Create registers a new session for the given id, replacing any previous
// session under the same id.
func (s *Store) Create(id string) *model.Session {
	sess := model.NewSession(id)
	s.mu.Lock()
	s.sessions[id] = &entry{session: sess}
	s.mu.Unlock()
	return sess
}

// Acquire locks the session for exclusive use and returns it with a release
// func. The caller must call release when done. Returns ErrSessionNotFound
// for unknown ids.
func (s *Store) Acquire(id string) (*model.Session, func(), error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, model.ErrSessionNotFound
	}
	e.mu.Lock()
	// The sweeper may have won the entry lock and dropped the session
	// between the map read and our lock. Re-check membership so a caller
	// never mutates an orphaned session.
	s.mu.RLock()
	cur, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok || cur != e {
		e.mu.Unlock()
		return nil, nil, model.ErrSessionNotFound
	}
	e.session.Touch()
	return e.session, func() { e.mu.Unlock() }, nil
}

// Delete removes a session. Returns false if the id was unknown.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if n := s.Sweep(time.Now().Add(-s.ttl)); n > 0 {
				slog.Info("expired idle sessions", "count", n)
			}
		}
	}
}

// Sweep removes sessions whose last activity is before cutoff and returns
// the number removed. Sessions currently locked by a caller are skipped;
// they are active by definition.
func (s *Store) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, e := range s.sessions {
		if !e.mu.TryLock() {
			continue
		}
		idle := e.session.LastActivity.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}
