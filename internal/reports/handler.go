// Package reports serves the derived read-only views. Every response is
// computed on demand from the in-memory ledger; nothing here writes.
package reports

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tallyvault/tallyvault/internal/ledger"
	"github.com/tallyvault/tallyvault/internal/reconcile"
)

// Handler exposes balances, history, metrics, leaderboard, notifications
// and stock levels.
type Handler struct {
	store *ledger.Store
}

// NewHandler builds the reports handler over the shared store.
func NewHandler(store *ledger.Store) *Handler {
	return &Handler{store: store}
}

// Accounts lists all accounts.
func (h *Handler) Accounts(c *fiber.Ctx) error {
	return c.JSON(h.store.Accounts())
}

// Balance returns the derived balance for one account.
func (h *Handler) Balance(c *fiber.Ctx) error {
	account, err := h.store.Account(c.Params("accountId"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	txs := h.store.Transactions()
	epochs := h.store.Epochs()
	return c.JSON(fiber.Map{
		"account_id":      account.ID,
		"balance":         reconcile.Balance(txs, account.ID),
		"lifetime_earned": reconcile.LifetimeEarned(txs, account.ID, epochs),
		"lifetime_spent":  reconcile.LifetimeSpent(txs, account.ID, epochs),
		"as_of":           time.Now().UTC(),
	})
}

// History returns the account's epoch-gated history, newest first.
func (h *Handler) History(c *fiber.Ctx) error {
	account, err := h.store.Account(c.Params("accountId"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	history := reconcile.History(h.store.Transactions(), account.ID, h.store.Epochs())
	if history == nil {
		history = []ledger.Transaction{}
	}
	return c.JSON(history)
}

// Series returns the trailing 30-day earned/spent series for one account.
func (h *Handler) Series(c *fiber.Ctx) error {
	account, err := h.store.Account(c.Params("accountId"))
	if err != nil {
		return fiber.NewError(http.StatusNotFound, err.Error())
	}
	series := reconcile.DailySeries(h.store.Transactions(), account.ID, time.Now().UTC(), h.store.MetricEpochs())
	return c.JSON(series)
}

// Leaderboard ranks agents by earned total.
func (h *Handler) Leaderboard(c *fiber.Ctx) error {
	entries := reconcile.Leaderboard(h.store.Accounts(), h.store.Transactions(), h.store.Epochs())
	if entries == nil {
		entries = []reconcile.Entry{}
	}
	return c.JSON(entries)
}

// Notifications returns the bounded activity feed, newest first.
func (h *Handler) Notifications(c *fiber.Ctx) error {
	feed := h.store.Notifications()
	if feed == nil {
		feed = []ledger.Notification{}
	}
	return c.JSON(feed)
}

// Stock returns the remaining prize counts.
func (h *Handler) Stock(c *fiber.Ctx) error {
	return c.JSON(h.store.Stock())
}
