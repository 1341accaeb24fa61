package ledger

import "github.com/shopspring/decimal"

// OpeningBalance computes the balance carried into a window. With a window
// start it replays every prior event; without one the customer's seed is used.
// withSeed adds the seed to the replayed figure.
func OpeningBalance(prior []Transaction, window DateRange, seed decimal.Decimal, withSeed bool) decimal.Decimal {
	if window.From.IsZero() {
		return seed
	}
	balance := decimal.Zero
	for _, tx := range prior {
		balance = balance.Add(tx.Net())
	}
	if withSeed {
		balance = balance.Add(seed)
	}
	return balance
}
