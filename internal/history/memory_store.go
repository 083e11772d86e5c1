// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package history

import (
	"context"
	"slices"
	"sync"
)

// MemoryStore keeps history in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	matches []Match
	cursors map[string]int
	closed  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cursors: make(map[string]int)}
}

func (s *MemoryStore) Backend() string { return "memory" }

func (s *MemoryStore) RecordMatch(_ context.Context, m Match) (Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Match{}, ErrClosed
	}
	m.ID = int64(len(s.matches) + 1)
	s.matches = append(s.matches, m)
	return m, nil
}

func (s *MemoryStore) RecentMatches(_ context.Context, limit int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := slices.Clone(s.matches)
	slices.Reverse(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) SaveCursor(_ context.Context, key string, cursor int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.cursors[key] = cursor
	return nil
}

func (s *MemoryStore) LoadCursor(_ context.Context, key string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, false, ErrClosed
	}
	c, ok := s.cursors[key]
	return c, ok, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
