package snapshot

import (
	"context"
	"sync"
)

// MemoryStore is a concurrency-safe in-memory backend useful for tests and
// for running without external services. It mimics the remote contract
// exactly: whole-snapshot read and whole-snapshot replace.
type MemoryStore struct {
	mu   sync.RWMutex
	snap Snapshot

	failReads  bool
	failWrites bool
}

// NewMemoryStore creates an empty in-memory snapshot store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snap: Snapshot{}}
}

// Read returns a copy of the stored mapping.
func (s *MemoryStore) Read(_ context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failReads {
		return nil, ErrUnavailable
	}
	return s.snap.Clone(), nil
}

// Write replaces the stored mapping with a copy of snap.
func (s *MemoryStore) Write(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites {
		return ErrUnavailable
	}
	s.snap = snap.Clone()
	return nil
}
