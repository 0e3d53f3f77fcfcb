package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/tallyvault/tallyvault/internal/ledger"
)

// Notifier records human-readable events for the shared activity feed.
type Notifier interface {
	Send(ctx context.Context, when time.Time, text string)
}

// FeedNotifier appends to the bounded notification feed in the ledger store,
// which the syncer then publishes with the next flush.
type FeedNotifier struct {
	store  *ledger.Store
	logger *slog.Logger
}

// NewFeedNotifier constructs a notifier over the shared store.
func NewFeedNotifier(store *ledger.Store, logger *slog.Logger) *FeedNotifier {
	return &FeedNotifier{store: store, logger: logger}
}

// Send appends the event to the feed and mirrors it to the structured log.
func (n *FeedNotifier) Send(_ context.Context, when time.Time, text string) {
	if n == nil || n.store == nil {
		return
	}
	n.store.AppendNotification(when, text)
	if n.logger != nil {
		n.logger.Info("notification", "text", text)
	}
}
