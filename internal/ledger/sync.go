package ledger

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/tallyvault/tallyvault/internal/kvsync"
)

// Syncer binds the store's documents to their logical keys in the sync
// engine: remote change events merge into the store, local mutations flush
// back through SetIfChanged. Unknown keys pass through untouched and a
// malformed value is treated as absent, never as an error.
type Syncer struct {
	engine *kvsync.Engine
	store  *Store
	logger *slog.Logger
	unsub  func()
}

// NewSyncer wires a store to an engine.
func NewSyncer(engine *kvsync.Engine, store *Store, logger *slog.Logger) *Syncer {
	return &Syncer{engine: engine, store: store, logger: logger}
}

// Start subscribes to change events. The engine's poller starts with the
// first subscription.
func (s *Syncer) Start() {
	if s.unsub != nil {
		return
	}
	s.unsub = s.engine.Subscribe(s.handle)
}

// Stop unsubscribes. In-flight poll cycles run to completion.
func (s *Syncer) Stop() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
}

// Load pulls every known key once and merges it into the store. Used at
// startup so derived views have data before the first poll cycle.
func (s *Syncer) Load(ctx context.Context) {
	for _, key := range []string{
		KeyLedger, KeyStock, KeyPINs, KeyGoals,
		KeyNotifications, KeyEpochs, KeyMetricEpochs,
	} {
		value, ok, err := s.engine.Get(ctx, key)
		if err != nil || !ok {
			continue
		}
		s.apply(key, value)
	}
}

// Flush writes every document back through the engine, skipping keys whose
// serialized form matches what this process last wrote.
func (s *Syncer) Flush(ctx context.Context) {
	s.flushKey(ctx, KeyLedger, s.store.LedgerDoc())
	s.flushKey(ctx, KeyStock, s.store.Stock())
	s.flushKey(ctx, KeyPINs, s.store.PINs())
	s.flushKey(ctx, KeyGoals, s.store.Goals())
	s.flushKey(ctx, KeyNotifications, s.store.Notifications())
	s.flushKey(ctx, KeyEpochs, s.store.Epochs())
	s.flushKey(ctx, KeyMetricEpochs, s.store.MetricEpochs())
}

func (s *Syncer) flushKey(ctx context.Context, key string, doc any) {
	if err := s.engine.SetIfChanged(ctx, key, doc); err != nil {
		s.logger.Error("flush failed", "key", key, "error", err)
	}
}

// handle routes one change event into the store. Deletes are ignored beyond
// a log line: merges only add, and the next flush restores the key remotely.
func (s *Syncer) handle(event kvsync.Event) {
	if event.Op == kvsync.OpDelete {
		s.logger.Warn("remote key deleted, retaining local copy", "key", event.Key)
		return
	}
	s.apply(event.Key, event.Value)
}

func (s *Syncer) apply(key string, value json.RawMessage) {
	switch key {
	case KeyLedger:
		var doc Doc
		if s.decode(key, value, &doc) {
			s.store.MergeLedger(doc)
		}
	case KeyNotifications:
		var feed []Notification
		if s.decode(key, value, &feed) {
			s.store.MergeNotifications(feed)
		}
	case KeyStock:
		var stock map[string]int
		if s.decode(key, value, &stock) {
			s.store.SetStock(stock)
		}
	case KeyPINs:
		var pins map[string]string
		if s.decode(key, value, &pins) {
			s.store.SetPINs(pins)
		}
	case KeyGoals:
		var goals []Goal
		if s.decode(key, value, &goals) {
			s.store.SetGoals(goals)
		}
	case KeyEpochs:
		var epochs map[string]time.Time
		if s.decode(key, value, &epochs) {
			s.store.SetEpochs(epochs)
		}
	case KeyMetricEpochs:
		var epochs map[string]time.Time
		if s.decode(key, value, &epochs) {
			s.store.SetMetricEpochs(epochs)
		}
	}
}

func (s *Syncer) decode(key string, value json.RawMessage, into any) bool {
	if err := json.Unmarshal(value, into); err != nil {
		s.logger.Warn("malformed document treated as absent", "key", key, "error", err)
		return false
	}
	return true
}
