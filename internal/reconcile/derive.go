// Package reconcile derives every business view from the raw transaction
// log: balances, active/reversed status, lifetime and windowed metrics, and
// leaderboard rankings. Every function is pure over its inputs; nothing is
// mutated, so the same log always yields the same view regardless of the
// order entries arrived in.
package reconcile

import (
	"time"

	"github.com/tallyvault/tallyvault/internal/ledger"
)

// Balance is the signed sum of the full log for one account: credits toward
// it minus debits away from it. Reversed entries still count here; reversal
// transactions compensate them explicitly.
func Balance(txs []ledger.Transaction, accountID string) int64 {
	var total int64
	for _, tx := range txs {
		switch {
		case tx.Kind == ledger.KindCredit && tx.ToID == accountID:
			total += tx.Amount
		case tx.Kind == ledger.KindDebit && tx.FromID == accountID:
			total -= tx.Amount
		}
	}
	return total
}

// ActiveRedemption reports whether a redemption debit is still in force: no
// later-or-equal-dated reversal credit exists for the same account whose
// label matches the redeemed prize. Equal timestamps count as reversing.
// Adding reversals can only flip active to inactive, never back.
func ActiveRedemption(txs []ledger.Transaction, redemption ledger.Transaction) bool {
	if ledger.Classify(redemption) != ledger.CategoryRedemption {
		return false
	}
	expected := ledger.PrefixRedemptionReversal + ledger.Label(redemption)
	for _, tx := range txs {
		if ledger.Classify(tx) != ledger.CategoryRedemptionReversal {
			continue
		}
		if tx.ToID != redemption.FromID {
			continue
		}
		if tx.Memo != expected {
			continue
		}
		if !tx.Date.Before(redemption.Date) {
			return false
		}
	}
	return true
}

// ActiveSale reports whether an earned credit is still in force: no
// later-or-equal-dated correction debit from the same account matches it.
// A sale reversal must also match the credit's memo label; withdrawal
// corrections and balance resets match on amount and date alone.
func ActiveSale(txs []ledger.Transaction, credit ledger.Transaction) bool {
	if credit.Kind != ledger.KindCredit {
		return false
	}
	switch ledger.Classify(credit) {
	case ledger.CategoryMint, ledger.CategoryRedemptionReversal, ledger.CategoryUncategorized:
		return false
	}
	for _, tx := range txs {
		if !ledger.IsCorrection(tx) {
			continue
		}
		if tx.FromID != credit.ToID || tx.Amount != credit.Amount {
			continue
		}
		if tx.Date.Before(credit.Date) {
			continue
		}
		if ledger.Classify(tx) == ledger.CategorySaleReversal && ledger.Label(tx) != credit.Memo {
			continue
		}
		return false
	}
	return true
}

// ActiveRedemptionCount counts the account's redemptions not yet reversed.
// Used against the per-agent redemption cap.
func ActiveRedemptionCount(txs []ledger.Transaction, accountID string) int {
	count := 0
	for _, tx := range txs {
		if tx.FromID != accountID || ledger.Classify(tx) != ledger.CategoryRedemption {
			continue
		}
		if ActiveRedemption(txs, tx) {
			count++
		}
	}
	return count
}

// Visible reports whether a transaction shows in the given account's
// history and metrics: its date must be at or after the account's epoch.
// No epoch entry means everything shows.
func Visible(tx ledger.Transaction, accountID string, epochs map[string]time.Time) bool {
	epoch, ok := epochs[accountID]
	if !ok {
		return true
	}
	return !tx.Date.Before(epoch)
}

// History returns the account's visible transactions, newest first.
func History(txs []ledger.Transaction, accountID string, epochs map[string]time.Time) []ledger.Transaction {
	var out []ledger.Transaction
	for _, tx := range txs {
		if tx.ToID != accountID && tx.FromID != accountID {
			continue
		}
		if !Visible(tx, accountID, epochs) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// LifetimeEarned sums the account's active earned credits and subtracts its
// correction debits, gated by the account's epoch. Mint and reversal credits
// never count as earning.
func LifetimeEarned(txs []ledger.Transaction, accountID string, epochs map[string]time.Time) int64 {
	var earned int64
	for _, tx := range txs {
		if !Visible(tx, accountID, epochs) {
			continue
		}
		if tx.ToID == accountID && ActiveSale(txs, tx) {
			earned += tx.Amount
		}
		if tx.FromID == accountID && ledger.IsCorrection(tx) {
			earned -= tx.Amount
		}
	}
	return earned
}

// LifetimeSpent sums the account's active redemption and withdrawal debits,
// gated by the account's epoch. Corrections are excluded.
func LifetimeSpent(txs []ledger.Transaction, accountID string, epochs map[string]time.Time) int64 {
	var spent int64
	for _, tx := range txs {
		if tx.FromID != accountID || !Visible(tx, accountID, epochs) {
			continue
		}
		switch ledger.Classify(tx) {
		case ledger.CategoryRedemption:
			if ActiveRedemption(txs, tx) {
				spent += tx.Amount
			}
		case ledger.CategoryWithdrawal:
			spent += tx.Amount
		}
	}
	return spent
}
