package history

import (
	"context"
	"sync"
	"time"
)

// MemStore is a bounded in-memory transcript ring. The oldest entry is
// evicted once capacity is exceeded. Safe for concurrent use.
type MemStore struct {
	mu      sync.Mutex
	entries []Entry
	max     int
}

// NewMemStore creates a ring holding up to max entries. max ≤ 0 selects a
// default of 100.
func NewMemStore(max int) *MemStore {
	if max <= 0 {
		max = 100
	}
	return &MemStore{max: max}
}

// Append archives e, evicting the oldest entry when full.
func (s *MemStore) Append(_ context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) >= s.max {
		n := copy(s.entries, s.entries[1:])
		s.entries = s.entries[:n]
	}
	s.entries = append(s.entries, e)
	return nil
}

// Recent returns up to limit entries, newest first. limit ≤ 0 returns all.
func (s *MemStore) Recent(_ context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Entry, n)
	for i := 0; i < n; i++ {
		out[i] = s.entries[len(s.entries)-1-i]
	}
	return out, nil
}

// Len reports the number of stored entries.
func (s *MemStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Close is a no-op.
func (s *MemStore) Close() error { return nil }

var _ Store = (*MemStore)(nil)
