package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

type entry struct {
	mu          sync.Mutex
	balance     decimal.Decimal
	totalEarned decimal.Decimal
}

type inMemoryLedger struct {
	mu       sync.RWMutex
	accounts map[string]*entry
	loader   Loader
}

// NewInMemory creates a concurrency-safe in-memory ledger with one mutex per
// account. A nil loader opens every account at zero.
func NewInMemory(loader Loader) Ledger {
	return &inMemoryLedger{accounts: make(map[string]*entry), loader: loader}
}

func (l *inMemoryLedger) lookup(accountID string) (*entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	e, ok := l.accounts[accountID]
	return e, ok
}

func (l *inMemoryLedger) Open(ctx context.Context, accountID string) error {
	if _, ok := l.lookup(accountID); ok {
		return nil
	}

	balance, earned := decimal.Zero, decimal.Zero
	if l.loader != nil {
		var err error
		balance, earned, err = l.loader(ctx, accountID)
		if err != nil {
			return fmt.Errorf("load account %s: %w", accountID, err)
		}
		if balance.IsNegative() || earned.IsNegative() {
			return fmt.Errorf("load account %s: negative balances", accountID)
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.accounts[accountID]; !exists {
		l.accounts[accountID] = &entry{balance: balance, totalEarned: earned}
	}
	return nil
}

func (l *inMemoryLedger) Get(_ context.Context, accountID string) (Account, error) {
	e, ok := l.lookup(accountID)
	if !ok {
		return Account{}, ErrNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return Account{ID: accountID, Balance: e.balance, TotalEarned: e.totalEarned}, nil
}

func (l *inMemoryLedger) Credit(ctx context.Context, accountID string, amount decimal.Decimal) (Account, error) {
	return l.Update(ctx, accountID, func(tx *Tx) error { return tx.Credit(amount) })
}

func (l *inMemoryLedger) Debit(ctx context.Context, accountID string, amount decimal.Decimal) (Account, error) {
	return l.Update(ctx, accountID, func(tx *Tx) error { return tx.Debit(amount) })
}

func (l *inMemoryLedger) Update(ctx context.Context, accountID string, fn func(tx *Tx) error) (Account, error) {
	e, ok := l.lookup(accountID)
	if !ok {
		return Account{}, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	tx := &Tx{accountID: accountID, balance: e.balance, totalEarned: e.totalEarned}
	if err := fn(tx); err != nil {
		return Account{}, err
	}

	e.balance = tx.balance
	e.totalEarned = tx.totalEarned
	return Account{ID: accountID, Balance: e.balance, TotalEarned: e.totalEarned}, nil
}
