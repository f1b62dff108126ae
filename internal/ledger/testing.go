package ledger

import "github.com/shopspring/decimal"

// SeedBalance is a test helper that opens an account on the in-memory ledger with
// the given balance, counting it as earned.
func SeedBalance(l Ledger, accountID string, amount decimal.Decimal) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		mem.accounts[accountID] = &entry{balance: amount, totalEarned: amount}
	}
}
