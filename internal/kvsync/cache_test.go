package kvsync

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/tallyvault/tallyvault/internal/snapshot"
)

func TestTTLCacheServesFreshEntryWithoutFetching(t *testing.T) {
	cache := NewTTLCache(5 * time.Second)
	now := time.Now()
	cache.now = func() time.Time { return now }

	calls := 0
	fetch := func(context.Context) (snapshot.Snapshot, error) {
		calls++
		return snapshot.Snapshot{"a": json.RawMessage(`1`)}, nil
	}

	ctx := context.Background()
	if _, err := cache.GetOrFetch(ctx, "snap", fetch); err != nil {
		t.Fatalf("first fetch: %v", err)
	}

	now = now.Add(2 * time.Second)
	if _, err := cache.GetOrFetch(ctx, "snap", fetch); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 fetch, got %d", calls)
	}

	now = now.Add(4 * time.Second)
	if _, err := cache.GetOrFetch(ctx, "snap", fetch); err != nil {
		t.Fatalf("third fetch: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected fetch after TTL expiry, got %d calls", calls)
	}
}

func TestTTLCacheInvalidateForcesFetch(t *testing.T) {
	cache := NewTTLCache(time.Hour)
	calls := 0
	fetch := func(context.Context) (snapshot.Snapshot, error) {
		calls++
		return snapshot.Snapshot{}, nil
	}

	ctx := context.Background()
	cache.GetOrFetch(ctx, "snap", fetch)
	cache.Invalidate("snap")
	cache.GetOrFetch(ctx, "snap", fetch)

	if calls != 2 {
		t.Fatalf("expected 2 fetches after invalidate, got %d", calls)
	}
}

func TestTTLCacheDoesNotCacheFailures(t *testing.T) {
	cache := NewTTLCache(time.Hour)
	boom := errors.New("boom")
	calls := 0
	fetch := func(context.Context) (snapshot.Snapshot, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return snapshot.Snapshot{}, nil
	}

	ctx := context.Background()
	if _, err := cache.GetOrFetch(ctx, "snap", fetch); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error to propagate, got %v", err)
	}
	if _, err := cache.GetOrFetch(ctx, "snap", fetch); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected failure not to be cached, got %d calls", calls)
	}
}
