package history

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byRoom map[string][]Entry
	limit  int
}

// NewMemoryStore creates a store retaining at most limit entries per room.
func NewMemoryStore(limit int) *MemoryStore {
	if limit < 1 {
		limit = 1
	}
	return &MemoryStore{byRoom: make(map[string][]Entry), limit: limit}
}

// Append prepends an entry, trimming to the retention bound.
func (s *MemoryStore) Append(ctx context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := append([]Entry{entry}, s.byRoom[entry.RoomCode]...)
	if len(entries) > s.limit {
		entries = entries[:s.limit]
	}
	s.byRoom[entry.RoomCode] = entries
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *MemoryStore) Recent(ctx context.Context, roomCode string, limit int) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.byRoom[roomCode]
	if limit >= 1 && limit < len(entries) {
		entries = entries[:limit]
	}
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}
