package snapshot

// FailReads toggles read failures on a memory store so tests can exercise
// the unavailable-store fallback path.
func FailReads(s Store, fail bool) {
	if mem, ok := s.(*MemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.failReads = fail
	}
}

// FailWrites toggles write failures on a memory store.
func FailWrites(s Store, fail bool) {
	if mem, ok := s.(*MemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.failWrites = fail
	}
}

// Seed installs a snapshot directly, bypassing Write failure toggles.
func Seed(s Store, snap Snapshot) {
	if mem, ok := s.(*MemoryStore); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.snap = snap.Clone()
	}
}
