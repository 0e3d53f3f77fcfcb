package kvsync

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/tallyvault/tallyvault/internal/snapshot"
)

// Op identifies the kind of change detected for a logical key.
type Op string

// Change operations emitted to subscribers.
const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Event describes one detected change to a logical key.
type Event struct {
	Op    Op
	Key   string
	Value json.RawMessage // nil for OpDelete
}

// Handler receives change events. Handlers run synchronously in registration
// order on the polling goroutine; a panicking handler is isolated and logged
// and never stops delivery to later handlers or the polling loop itself.
type Handler func(Event)

const snapshotCacheKey = "snapshot"

type subscription struct {
	id      int
	handler Handler
}

// Engine presents a per-key get/set/delete interface over a store that only
// supports whole-snapshot read and write, and detects remote changes by
// polling. There is one Engine per process: the TTL cache, the poller and its
// last-seen state are process-wide, shared by every logical key.
//
// The engine never lets store failures escape to its consumers: reads fall
// back to the last known in-memory snapshot, failed writes are logged and
// retried by overlaying the still-dirty keys on the next poll cycle. The
// in-memory snapshot remains the source of truth until a write lands.
type Engine struct {
	store    snapshot.Store
	cache    *TTLCache
	interval time.Duration
	logger   *slog.Logger

	mu          sync.Mutex
	mem         snapshot.Snapshot // last known full snapshot, local writes included
	prev        snapshot.Snapshot // poller diff base; local writes fold in to suppress self-echo
	lastWritten map[string]string // serialized last value this process wrote per key
	dirty       map[string]bool   // keys pending remote flush; false means pending delete
	subs        []subscription
	nextSubID   int
	stopCh      chan struct{}
	done        chan struct{}
}

// New constructs the engine. It does not start polling; the poller starts
// lazily with the first subscriber and stops with the last.
func New(store snapshot.Store, cache *TTLCache, interval time.Duration, logger *slog.Logger) *Engine {
	return &Engine{
		store:       store,
		cache:       cache,
		interval:    interval,
		logger:      logger,
		mem:         snapshot.Snapshot{},
		prev:        snapshot.Snapshot{},
		lastWritten: make(map[string]string),
		dirty:       make(map[string]bool),
	}
}

// Get projects a single key out of the full snapshot, reading through the
// TTL cache. When the store is unavailable it answers from the last known
// in-memory snapshot instead of propagating the failure.
func (e *Engine) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	snap, err := e.cache.GetOrFetch(ctx, snapshotCacheKey, e.store.Read)
	if err != nil {
		e.logger.Warn("snapshot read failed, serving last known state", "key", key, "op", "get", "error", err)
		e.mu.Lock()
		defer e.mu.Unlock()
		value, ok := e.mem[key]
		return value, ok, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	merged := e.overlayLocked(snap)
	e.mem = merged
	value, ok := merged[key]
	return value, ok, nil
}

// Set serializes value, overwrites key in a fresh copy of the snapshot and
// writes the whole snapshot back, invalidating the cache so the next read
// observes the write. A store failure is absorbed: the change stays in the
// in-memory snapshot, the key is marked dirty and the poller retries it.
func (e *Engine) Set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	e.apply(ctx, key, payload)
	return nil
}

// SetIfChanged behaves like Set but short-circuits when the serialized value
// is identical to the last value this process wrote for the key and the last
// known snapshot still carries it. It only suppresses self-produced repeats:
// a key wiped or overwritten remotely is re-written by the next call even
// though the local state did not change.
func (e *Engine) SetIfChanged(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	e.mu.Lock()
	last, wrote := e.lastWritten[key]
	held, present := e.mem[key]
	e.mu.Unlock()
	if wrote && last == string(payload) && present && string(held) == last {
		return nil
	}

	e.apply(ctx, key, payload)
	return nil
}

// Delete removes key from the snapshot using the same read-modify-write
// cycle as Set.
func (e *Engine) Delete(ctx context.Context, key string) {
	e.apply(ctx, key, nil)
}

// apply performs one read-modify-write cycle for key. payload nil deletes.
func (e *Engine) apply(ctx context.Context, key string, payload json.RawMessage) {
	base, err := e.cache.GetOrFetch(ctx, snapshotCacheKey, e.store.Read)

	e.mu.Lock()
	if err != nil {
		e.logger.Warn("snapshot read failed, writing over last known state", "key", key, "op", "set", "error", err)
		base = e.mem
	}
	next := e.overlayLocked(base)
	if payload == nil {
		delete(next, key)
	} else {
		next[key] = payload
	}
	e.mem = next
	if payload == nil {
		e.prev = withoutKey(e.prev, key)
		delete(e.lastWritten, key)
	} else {
		e.prev = withKey(e.prev, key, payload)
		e.lastWritten[key] = string(payload)
	}
	// The overlay folds every dirty key's data into this write, so a success
	// settles them all, not just the applied key.
	settled := make([]string, 0, len(e.dirty))
	for k := range e.dirty {
		settled = append(settled, k)
	}
	toWrite := next.Clone()
	e.mu.Unlock()

	if err := e.store.Write(ctx, toWrite); err != nil {
		e.logger.Error("snapshot write failed, deferring to next poll cycle", "key", key, "op", "set", "error", err)
		e.mu.Lock()
		e.dirty[key] = payload != nil
		e.mu.Unlock()
		return
	}

	e.mu.Lock()
	delete(e.dirty, key)
	for _, k := range settled {
		delete(e.dirty, k)
	}
	e.mu.Unlock()
	e.cache.Invalidate(snapshotCacheKey)
}

// Subscribe registers a change handler and returns its unsubscribe function.
// The poller starts with the first subscriber and stops when the last one
// unsubscribes. Unsubscribing is the only cancellation primitive; an
// in-flight poll cycle runs to completion.
func (e *Engine) Subscribe(handler Handler) func() {
	e.mu.Lock()
	e.nextSubID++
	id := e.nextSubID
	e.subs = append(e.subs, subscription{id: id, handler: handler})
	if len(e.subs) == 1 {
		e.startPollerLocked()
	}
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			for i, sub := range e.subs {
				if sub.id == id {
					e.subs = append(e.subs[:i], e.subs[i+1:]...)
					break
				}
			}
			var stop chan struct{}
			if len(e.subs) == 0 && e.stopCh != nil {
				stop = e.stopCh
				e.stopCh = nil
			}
			e.mu.Unlock()
			if stop != nil {
				close(stop)
			}
		})
	}
}

func (e *Engine) startPollerLocked() {
	stop := make(chan struct{})
	done := make(chan struct{})
	e.stopCh = stop
	e.done = done
	go e.pollLoop(stop, done)
}

func (e *Engine) pollLoop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			e.pollOnce(context.Background())
		}
	}
}

// pollOnce runs one change-detection cycle: retry dirty keys, fetch the
// snapshot directly (bypassing the cache so detection sees fresh data), diff
// against the previous snapshot and dispatch events. A failed cycle never
// stops subsequent cycles.
func (e *Engine) pollOnce(ctx context.Context) {
	e.flushDirty(ctx)

	fetched, err := e.store.Read(ctx)
	if err != nil {
		e.logger.Warn("poll cycle skipped", "op", "poll", "error", err)
		return
	}

	e.mu.Lock()
	current := e.overlayLocked(fetched)
	events := diff(e.prev, current)
	e.prev = current
	e.mem = current
	// A remote delete or overwrite invalidates the write-suppression memory
	// for the key, so the next SetIfChanged genuinely restores it.
	for _, event := range events {
		switch event.Op {
		case OpDelete:
			delete(e.lastWritten, event.Key)
		case OpUpdate:
			if last, ok := e.lastWritten[event.Key]; ok && last != string(event.Value) {
				delete(e.lastWritten, event.Key)
			}
		}
	}
	handlers := make([]Handler, len(e.subs))
	for i, sub := range e.subs {
		handlers[i] = sub.handler
	}
	e.mu.Unlock()

	for _, event := range events {
		for _, handler := range handlers {
			e.dispatch(handler, event)
		}
	}
}

func (e *Engine) dispatch(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("subscriber panicked", "key", event.Key, "op", string(event.Op), "panic", r)
		}
	}()
	handler(event)
}

// flushDirty overlays keys whose writes previously failed onto a fresh
// remote read and retries the write.
func (e *Engine) flushDirty(ctx context.Context) {
	e.mu.Lock()
	if len(e.dirty) == 0 {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	base, err := e.store.Read(ctx)
	if err != nil {
		e.logger.Warn("dirty flush skipped", "op", "flush", "error", err)
		return
	}

	e.mu.Lock()
	next := e.overlayLocked(base)
	keys := make([]string, 0, len(e.dirty))
	for k := range e.dirty {
		keys = append(keys, k)
	}
	toWrite := next.Clone()
	e.mu.Unlock()

	if err := e.store.Write(ctx, toWrite); err != nil {
		e.logger.Warn("dirty flush failed", "op", "flush", "keys", keys, "error", err)
		return
	}

	e.mu.Lock()
	for _, k := range keys {
		delete(e.dirty, k)
	}
	e.mu.Unlock()
	e.cache.Invalidate(snapshotCacheKey)
}

// overlayLocked copies snap and re-applies locally dirty keys on top, so a
// stale or concurrently overwritten remote copy never clobbers a pending
// local change. Caller holds e.mu.
func (e *Engine) overlayLocked(snap snapshot.Snapshot) snapshot.Snapshot {
	out := snap.Clone()
	if out == nil {
		out = snapshot.Snapshot{}
	}
	for key, present := range e.dirty {
		if !present {
			delete(out, key)
			continue
		}
		if value, ok := e.mem[key]; ok {
			out[key] = value
		}
	}
	return out
}

// diff compares two snapshots key by key using structural JSON equality and
// returns the resulting events with keys in sorted order.
func diff(prev, current snapshot.Snapshot) []Event {
	keys := make([]string, 0, len(prev)+len(current))
	seen := make(map[string]struct{}, len(prev)+len(current))
	for k := range prev {
		keys = append(keys, k)
		seen[k] = struct{}{}
	}
	for k := range current {
		if _, ok := seen[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var events []Event
	for _, key := range keys {
		before, had := prev[key]
		after, has := current[key]
		switch {
		case !had && has:
			events = append(events, Event{Op: OpInsert, Key: key, Value: after})
		case had && !has:
			events = append(events, Event{Op: OpDelete, Key: key})
		case had && has && !jsonEqual(before, after):
			events = append(events, Event{Op: OpUpdate, Key: key, Value: after})
		}
	}
	return events
}

// jsonEqual reports structural equality of two JSON documents, so key order
// and whitespace differences do not count as changes.
func jsonEqual(a, b json.RawMessage) bool {
	var av, bv any
	if json.Unmarshal(a, &av) != nil || json.Unmarshal(b, &bv) != nil {
		return bytes.Equal(a, b)
	}
	return reflect.DeepEqual(av, bv)
}

func withKey(snap snapshot.Snapshot, key string, value json.RawMessage) snapshot.Snapshot {
	out := snap.Clone()
	if out == nil {
		out = snapshot.Snapshot{}
	}
	out[key] = value
	return out
}

func withoutKey(snap snapshot.Snapshot, key string) snapshot.Snapshot {
	out := snap.Clone()
	if out == nil {
		out = snapshot.Snapshot{}
	}
	delete(out, key)
	return out
}
