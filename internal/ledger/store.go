package ledger

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrUnknownAccount indicates the referenced account does not exist.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrDuplicateAccount indicates an account with the same id already exists.
	ErrDuplicateAccount = errors.New("duplicate account")
)

// Store is the in-memory representation of every document this application
// keeps in the remote snapshot. It is the single owner of that state within
// the process; coordination with other processes happens exclusively through
// snapshot exchange, with remote copies merged in (never trusted wholesale)
// so a stale remote snapshot can never clobber an optimistic local mutation.
type Store struct {
	mu            sync.RWMutex
	accounts      []Account
	transactions  []Transaction // kept sorted by date descending
	epochs        map[string]time.Time
	metricEpochs  map[string]time.Time
	stock         map[string]int
	pins          map[string]string
	notifications []Notification // kept sorted by When descending, capped
	goals         []Goal
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		epochs:       make(map[string]time.Time),
		metricEpochs: make(map[string]time.Time),
		stock:        make(map[string]int),
		pins:         make(map[string]string),
	}
}

// MergeLedger folds a remote copy of the account list and transaction log
// into the local state: union by id with local payloads winning on collision.
// No entity is ever dropped, which makes the merge idempotent and safe to
// apply against arbitrarily stale remote snapshots.
func (s *Store) MergeLedger(doc Doc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = mergeByID(doc.Accounts, s.accounts, func(a Account) string { return a.ID })
	s.transactions = mergeByID(doc.Transactions, s.transactions, func(t Transaction) string { return t.ID })
	sortTransactions(s.transactions)
}

// MergeNotifications folds a remote copy of the feed in by id, newest first,
// then truncates to the cap.
func (s *Store) MergeNotifications(feed []Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = mergeByID(feed, s.notifications, func(n Notification) string { return n.ID })
	sort.SliceStable(s.notifications, func(i, j int) bool {
		return s.notifications[i].When.After(s.notifications[j].When)
	})
	if len(s.notifications) > NotificationCap {
		s.notifications = s.notifications[:NotificationCap]
	}
}

// SetEpochs replaces the per-account epoch map with the remote copy.
// Epoch-style documents are replaced rather than merged: they are only
// mutated by explicit admin actions and the sync engine already shields a
// pending local write from being overwritten by a stale poll.
func (s *Store) SetEpochs(epochs map[string]time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epochs = cloneTimeMap(epochs)
}

// SetMetricEpochs replaces the per-metric epoch map.
func (s *Store) SetMetricEpochs(epochs map[string]time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metricEpochs = cloneTimeMap(epochs)
}

// SetStock replaces the prize stock levels.
func (s *Store) SetStock(stock map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock = make(map[string]int, len(stock))
	for k, v := range stock {
		s.stock[k] = v
	}
}

// SetPINs replaces the PIN hash table.
func (s *Store) SetPINs(pins map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins = make(map[string]string, len(pins))
	for k, v := range pins {
		s.pins[k] = v
	}
}

// SetGoals replaces the savings goal list.
func (s *Store) SetGoals(goals []Goal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals = append([]Goal(nil), goals...)
}

// AddAccount registers a new account.
func (s *Store) AddAccount(account Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.accounts {
		if existing.ID == account.ID {
			return ErrDuplicateAccount
		}
	}
	s.accounts = append(s.accounts, account)
	return nil
}

// AppendTransaction adds an immutable entry to the log.
func (s *Store) AppendTransaction(tx Transaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transactions = append(s.transactions, tx)
	sortTransactions(s.transactions)
}

// AppendNotification adds a feed entry, dropping the oldest beyond the cap.
func (s *Store) AppendNotification(when time.Time, text string) Notification {
	n := Notification{ID: uuid.NewString(), When: when, Text: text}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append([]Notification{n}, s.notifications...)
	sort.SliceStable(s.notifications, func(i, j int) bool {
		return s.notifications[i].When.After(s.notifications[j].When)
	})
	if len(s.notifications) > NotificationCap {
		s.notifications = s.notifications[:NotificationCap]
	}
	return n
}

// SetEpoch records a per-account history reset at the given timestamp.
func (s *Store) SetEpoch(accountID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epochs[accountID] = at
}

// SetMetricEpoch records a reset for one named metric series.
func (s *Store) SetMetricEpoch(metric string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metricEpochs[metric] = at
}

// AdjustStock changes the remaining count for a prize by delta.
func (s *Store) AdjustStock(prize string, delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[prize] += delta
}

// SetPIN stores the bcrypt hash for an account.
func (s *Store) SetPIN(accountID, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins[accountID] = hash
}

// AddGoal appends a savings goal.
func (s *Store) AddGoal(goal Goal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.goals = append(s.goals, goal)
}

// RemoveGoal deletes a goal by id. Removing an unknown id is a no-op.
func (s *Store) RemoveGoal(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, g := range s.goals {
		if g.ID == id {
			s.goals = append(s.goals[:i], s.goals[i+1:]...)
			return
		}
	}
}

// Account looks up an account by id.
func (s *Store) Account(id string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.ID == id {
			return a, nil
		}
	}
	return Account{}, ErrUnknownAccount
}

// Vault returns the single system account, if present.
func (s *Store) Vault() (Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.accounts {
		if a.Role == RoleSystem {
			return a, true
		}
	}
	return Account{}, false
}

// Accounts returns a copy of the account list in stored order.
func (s *Store) Accounts() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Account(nil), s.accounts...)
}

// Transactions returns a copy of the log, newest first.
func (s *Store) Transactions() []Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Transaction(nil), s.transactions...)
}

// Notifications returns a copy of the feed, newest first.
func (s *Store) Notifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Notification(nil), s.notifications...)
}

// Epochs returns a copy of the per-account epoch map.
func (s *Store) Epochs() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTimeMap(s.epochs)
}

// MetricEpochs returns a copy of the per-metric epoch map.
func (s *Store) MetricEpochs() map[string]time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTimeMap(s.metricEpochs)
}

// Stock returns a copy of the prize stock levels.
func (s *Store) Stock() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.stock))
	for k, v := range s.stock {
		out[k] = v
	}
	return out
}

// StockOf returns the remaining count for one prize.
func (s *Store) StockOf(prize string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stock[prize]
}

// PINHash returns the stored bcrypt hash for an account.
func (s *Store) PINHash(accountID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	hash, ok := s.pins[accountID]
	return hash, ok
}

// PINs returns a copy of the PIN hash table.
func (s *Store) PINs() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.pins))
	for k, v := range s.pins {
		out[k] = v
	}
	return out
}

// Goals returns a copy of the savings goal list.
func (s *Store) Goals() []Goal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Goal(nil), s.goals...)
}

// LedgerDoc snapshots the paired account list and transaction log.
func (s *Store) LedgerDoc() Doc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Doc{
		Accounts:     append([]Account(nil), s.accounts...),
		Transactions: append([]Transaction(nil), s.transactions...),
	}
}

// mergeByID unions two entity slices by id. The result is seeded with every
// remote entity and then overwritten with every local entity, so the local
// payload wins on id collision and nothing is ever dropped.
func mergeByID[T any](remote, local []T, id func(T) string) []T {
	index := make(map[string]int, len(remote)+len(local))
	merged := make([]T, 0, len(remote)+len(local))
	for _, item := range remote {
		key := id(item)
		if at, ok := index[key]; ok {
			merged[at] = item
			continue
		}
		index[key] = len(merged)
		merged = append(merged, item)
	}
	for _, item := range local {
		key := id(item)
		if at, ok := index[key]; ok {
			merged[at] = item
			continue
		}
		index[key] = len(merged)
		merged = append(merged, item)
	}
	return merged
}

func sortTransactions(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.After(txs[j].Date)
	})
}

func cloneTimeMap(in map[string]time.Time) map[string]time.Time {
	out := make(map[string]time.Time, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
