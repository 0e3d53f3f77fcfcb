package reconcile

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tallyvault/tallyvault/internal/ledger"
)

// Entry is one leaderboard row: accounts whose names normalize to the same
// form accumulate into a single entry.
type Entry struct {
	Name   string `json:"name"` // display name of the first account seen
	Earned int64  `json:"earned"`
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName folds a display name for grouping: diacritics stripped,
// lowercased, punctuation and whitespace runs collapsed to single spaces.
func NormalizeName(name string) string {
	folded, _, err := transform.String(stripMarks, name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	space := false
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

// Leaderboard ranks agent accounts by earned total, descending. Earned uses
// the same active-sale and correction rules as LifetimeEarned, gated by each
// account's own epoch. The sort is stable: accounts that tie keep the order
// the account list stores them in.
func Leaderboard(accounts []ledger.Account, txs []ledger.Transaction, epochs map[string]time.Time) []Entry {
	type group struct {
		entry Entry
		order int
	}
	groups := make(map[string]*group)
	var keys []string

	for _, account := range accounts {
		if account.Role != ledger.RoleAgent {
			continue
		}
		key := NormalizeName(account.Name)
		earned := LifetimeEarned(txs, account.ID, epochs)
		if g, ok := groups[key]; ok {
			g.entry.Earned += earned
			continue
		}
		groups[key] = &group{entry: Entry{Name: account.Name, Earned: earned}, order: len(keys)}
		keys = append(keys, key)
	}

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, groups[key].entry)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Earned > entries[j].Earned
	})
	return entries
}
