package token

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	token    string
	issuedAt time.Time
}

// MemoryStore keeps issued tokens in process memory. Suitable for a
// single-instance deployment; multi-instance setups should use the
// Redis store so any instance can validate a token.
type MemoryStore struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]entry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, m: make(map[string]entry)}
}

func (s *MemoryStore) Issue(_ context.Context, session, token string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[session] = entry{token: token, issuedAt: now}
	return nil
}

func (s *MemoryStore) ConsumeIfValid(_ context.Context, session, token string, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.m[session]
	if !ok || e.token != token {
		return false, nil
	}
	delete(s.m, session)
	return now.Sub(e.issuedAt) <= s.ttl, nil
}

func (s *MemoryStore) SweepExpired(_ context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for session, e := range s.m {
		if now.Sub(e.issuedAt) > s.ttl {
			delete(s.m, session)
		}
	}
	return nil
}
