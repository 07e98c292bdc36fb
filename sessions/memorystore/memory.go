// Package memorystore is the in-memory sessions.Store used by single-process
// deployments. Expiry is handled by a periodic sweep rather than unbounded
// growth.
package memorystore

import (
	"context"
	"sync"
	"time"

	"github.com/wikigate/wikigate/sessions"
)

// DefaultTTL is the idle lifetime applied when no TTL is configured.
const DefaultTTL = 30 * time.Minute

// Store is an in-memory implementation of sessions.Store.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*sessions.Session
	ttl      time.Duration
	now      func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithTTL sets the idle lifetime after which a sweep evicts the session.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock overrides the store's time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New builds an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		sessions: make(map[string]*sessions.Session),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements sessions.Store.
func (s *Store) Get(ctx context.Context, id string) (*sessions.Session, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, false, nil
	}
	cp := *sess
	return &cp, true, nil
}

// Put implements sessions.Store.
func (s *Store) Put(ctx context.Context, sess *sessions.Session) error {
	cp := *sess
	s.mu.Lock()
	s.sessions[cp.ID] = &cp
	s.mu.Unlock()
	return nil
}

// Delete implements sessions.Store.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Len reports the number of live session records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep evicts sessions idle longer than the TTL and returns the eviction
// count.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps at the given interval until the context is canceled.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}
