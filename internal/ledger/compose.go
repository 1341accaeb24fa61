package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Compose orders window transactions by date, keeping the normalizer order on
// ties, and assigns running balances seeded by opening. It returns the closing
// balance. txs is sorted in place.
func Compose(txs []Transaction, opening decimal.Decimal) decimal.Decimal {
	sort.SliceStable(txs, func(i, j int) bool {
		return txs[i].Date.Before(txs[j].Date)
	})
	balance := opening
	for i := range txs {
		balance = balance.Add(txs[i].Debit).Sub(txs[i].Credit)
		txs[i].RunningBalance = balance
	}
	return balance
}
