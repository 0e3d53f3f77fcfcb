package snapshot

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrUnavailable indicates the remote store could not be read or written
// (transport, auth, or payload parse failure). Callers are expected to fall
// back to their last known in-memory snapshot rather than surface it.
var ErrUnavailable = errors.New("snapshot store unavailable")

// Snapshot is the entire remote key-value mapping, exchanged as one unit.
// Values are raw JSON documents; the store never inspects them.
type Snapshot map[string]json.RawMessage

// Clone returns a deep copy. The raw value bytes are copied so a mutation of
// one snapshot can never alias another.
func (s Snapshot) Clone() Snapshot {
	if s == nil {
		return nil
	}
	out := make(Snapshot, len(s))
	for k, v := range s {
		cp := make(json.RawMessage, len(v))
		copy(cp, v)
		out[k] = cp
	}
	return out
}

// Store defines the contract implemented by remote snapshot backends
// (e.g. Redis, Postgres). The store supports only bulk read and bulk write of
// the whole mapping: no partial updates and no compare-and-swap. Two
// concurrent writers race at snapshot granularity and the later write wins.
type Store interface {
	Read(ctx context.Context) (Snapshot, error)
	Write(ctx context.Context, snap Snapshot) error
}
