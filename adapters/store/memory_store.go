package store

import (
	"context"
	"sync"
	"time"

	"github.com/katanaid/katana/core"
	"github.com/katanaid/katana/ports"
)

// retention is how long terminal sessions linger before the reaper removes
// them. It only affects store hygiene, not correctness.
const retention = 5 * time.Minute

// MemorySessionStore is an in-memory implementation of the SessionStore
// interface, intended for tests and single-node deployments.
type MemorySessionStore struct {
	sessions map[string]*core.ChallengeSession
	mu       sync.Mutex
	done     chan struct{}
	closeOne sync.Once
}

// NewMemorySessionStore creates a new in-memory session store and starts its
// reaper.
func NewMemorySessionStore() *MemorySessionStore {
	s := &MemorySessionStore{
		sessions: make(map[string]*core.ChallengeSession),
		done:     make(chan struct{}),
	}

	go s.reap()

	return s
}

// Put writes a new active session.
func (s *MemorySessionStore) Put(ctx context.Context, session *core.ChallengeSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

// Get returns the session, treating an active session past its deadline as
// expired.
func (s *MemorySessionStore) Get(ctx context.Context, sessionID string) (*core.ChallengeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, core.ErrSessionNotFound
	}

	if session.State == core.SessionActive && session.ExpiredAt(time.Now()) {
		session.State = core.SessionExpired
	}

	copied := *session
	if copied.State == core.SessionExpired {
		return &copied, core.ErrSessionExpired
	}

	return &copied, nil
}

// TryConsume transitions an active session to consumed. The single mutex
// makes the compare-and-transition atomic: exactly one concurrent caller
// succeeds.
func (s *MemorySessionStore) TryConsume(ctx context.Context, sessionID string) (*core.ChallengeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, core.ErrSessionNotFound
	}

	switch session.State {
	case core.SessionConsumed:
		return nil, core.ErrSessionConsumed
	case core.SessionExpired:
		return nil, core.ErrSessionExpired
	}

	if session.ExpiredAt(time.Now()) {
		session.State = core.SessionExpired
		return nil, core.ErrSessionExpired
	}

	session.State = core.SessionConsumed

	copied := *session
	return &copied, nil
}

// Close stops the reaper.
func (s *MemorySessionStore) Close() {
	s.closeOne.Do(func() { close(s.done) })
}

func (s *MemorySessionStore) reap() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-retention)

			s.mu.Lock()
			for id, session := range s.sessions {
				if session.ExpiresAt.Before(cutoff) {
					delete(s.sessions, id)
				}
			}
			s.mu.Unlock()
		}
	}
}

var _ ports.SessionStore = (*MemorySessionStore)(nil)
