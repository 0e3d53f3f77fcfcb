package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the whole snapshot as one JSON object under a single
// Redis key, read and written as a unit.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore builds a snapshot store over the given client and key.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

// Read fetches and decodes the full mapping. A missing key yields an empty
// snapshot; a transport or decode failure yields ErrUnavailable.
func (s *RedisStore) Read(ctx context.Context) (Snapshot, error) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, s.key, err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnavailable, s.key, err)
	}
	if snap == nil {
		snap = Snapshot{}
	}
	return snap, nil
}

// Write replaces the full mapping.
func (s *RedisStore) Write(ctx context.Context, snap Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrUnavailable, s.key, err)
	}
	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrUnavailable, s.key, err)
	}
	return nil
}
