package reconcile

import (
	"time"

	"github.com/tallyvault/tallyvault/internal/ledger"
)

// SeriesDays is the length of the trailing daily window, including today.
const SeriesDays = 30

// DayMetric is one day of the earned/spent series.
type DayMetric struct {
	Date   time.Time `json:"date"`
	Earned int64     `json:"earned"`
	Spent  int64     `json:"spent"`
}

// DailySeries computes the trailing 30-day earned/spent series for an
// account, oldest day first. Earned sums the day's active, non-mint,
// non-reversal credits minus its correction debits; spent sums the day's
// active redemption debits. Each side is independently gated by its named
// metric epoch and floored at zero, so same-day corrections exceeding
// credits never produce a negative day.
func DailySeries(txs []ledger.Transaction, accountID string, now time.Time, metricEpochs map[string]time.Time) []DayMetric {
	loc := now.Location()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

	earnedEpoch, hasEarnedEpoch := metricEpochs[ledger.MetricEarned30d]
	spentEpoch, hasSpentEpoch := metricEpochs[ledger.MetricSpent30d]

	series := make([]DayMetric, SeriesDays)
	for i := range series {
		day := today.AddDate(0, 0, i-SeriesDays+1)
		next := day.AddDate(0, 0, 1)

		var earned, spent int64
		for _, tx := range txs {
			if tx.Date.Before(day) || !tx.Date.Before(next) {
				continue
			}
			if tx.ToID == accountID && ActiveSale(txs, tx) {
				if !hasEarnedEpoch || !tx.Date.Before(earnedEpoch) {
					earned += tx.Amount
				}
			}
			if tx.FromID == accountID && ledger.IsCorrection(tx) {
				if !hasEarnedEpoch || !tx.Date.Before(earnedEpoch) {
					earned -= tx.Amount
				}
			}
			if tx.FromID == accountID && ledger.Classify(tx) == ledger.CategoryRedemption && ActiveRedemption(txs, tx) {
				if !hasSpentEpoch || !tx.Date.Before(spentEpoch) {
					spent += tx.Amount
				}
			}
		}
		if earned < 0 {
			earned = 0
		}
		if spent < 0 {
			spent = 0
		}
		series[i] = DayMetric{Date: day, Earned: earned, Spent: spent}
	}
	return series
}
