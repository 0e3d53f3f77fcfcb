package ledger

import "strings"

// Category is the typed transaction tag. New records carry it explicitly;
// records written before the tag existed are classified by their memo prefix.
type Category string

// Transaction categories.
const (
	CategoryMint               Category = "mint"
	CategoryAward              Category = "award"
	CategoryRedemption         Category = "redemption"
	CategoryRedemptionReversal Category = "redemption_reversal"
	CategorySaleReversal       Category = "sale_reversal"
	CategoryWithdrawal         Category = "withdrawal"
	CategoryWithdrawCorrection Category = "withdraw_correction"
	CategoryBalanceReset       Category = "balance_reset"
	CategoryUncategorized      Category = "uncategorized"
)

// Memo conventions carried for backward compatibility with untyped records.
// The prefix is followed by the label the transaction refers to (a prize name
// for redemptions, the original memo for sale reversals).
const (
	PrefixRedeem             = "Redeem: "
	PrefixRedemptionReversal = "Reversal of redemption: "
	PrefixSaleReversal       = "Reversal of sale: "
	PrefixWithdraw           = "Withdraw: "
	PrefixWithdrawCorrection = "Correction of withdrawal: "
	PrefixBalanceReset       = "Balance reset"
	MemoMint                 = "Initial mint"
)

// Classify resolves the category of a transaction. The explicit tag wins;
// otherwise the memo prefix decides. A plain untagged credit is an award
// (that is what untyped sale records were), while an untagged, unprefixed
// debit is uncategorized: it counts toward the balance but is excluded from
// every derived metric and never participates in reversal matching.
func Classify(tx Transaction) Category {
	if tx.Category != "" {
		return tx.Category
	}
	switch tx.Kind {
	case KindCredit:
		switch {
		case strings.HasPrefix(tx.Memo, MemoMint):
			return CategoryMint
		case strings.HasPrefix(tx.Memo, PrefixRedemptionReversal):
			return CategoryRedemptionReversal
		default:
			return CategoryAward
		}
	case KindDebit:
		switch {
		case strings.HasPrefix(tx.Memo, PrefixRedeem):
			return CategoryRedemption
		case strings.HasPrefix(tx.Memo, PrefixSaleReversal):
			return CategorySaleReversal
		case strings.HasPrefix(tx.Memo, PrefixWithdrawCorrection):
			return CategoryWithdrawCorrection
		case strings.HasPrefix(tx.Memo, PrefixBalanceReset):
			return CategoryBalanceReset
		case strings.HasPrefix(tx.Memo, PrefixWithdraw):
			return CategoryWithdrawal
		}
	}
	return CategoryUncategorized
}

// Label strips the category's memo prefix, yielding the thing the
// transaction refers to: the prize name of a redemption or its reversal, the
// original memo of a sale reversal.
func Label(tx Transaction) string {
	memo := tx.Memo
	for _, prefix := range []string{
		PrefixRedeem,
		PrefixRedemptionReversal,
		PrefixSaleReversal,
		PrefixWithdrawCorrection,
		PrefixWithdraw,
	} {
		if strings.HasPrefix(memo, prefix) {
			return memo[len(prefix):]
		}
	}
	return memo
}

// IsCorrection reports whether tx is a correction debit: a reversal of sale,
// a withdrawal correction, or a balance reset. Corrections are excluded from
// lifetime spend and subtracted from lifetime earned.
func IsCorrection(tx Transaction) bool {
	switch Classify(tx) {
	case CategorySaleReversal, CategoryWithdrawCorrection, CategoryBalanceReset:
		return tx.Kind == KindDebit
	}
	return false
}
