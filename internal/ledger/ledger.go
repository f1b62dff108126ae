package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/cryptoearn/cryptoearn/internal/apperr"
)

var (
	// ErrInsufficientBalance occurs when a debit exceeds the available balance.
	ErrInsufficientBalance = apperr.New(apperr.KindInsufficientBalance, "insufficient_balance", "Insufficient balance")

	// ErrInvalidAmount rejects non-positive postings.
	ErrInvalidAmount = apperr.New(apperr.KindValidation, "invalid_amount", "Invalid amount")

	// ErrNotFound is returned for accounts that were never opened.
	ErrNotFound = apperr.New(apperr.KindNotFound, "account_not_found", "User not found")
)

// Account is a point-in-time view of an account's balances.
type Account struct {
	ID          string
	Balance     decimal.Decimal
	TotalEarned decimal.Decimal
}

// Loader returns the starting balances of an account being opened, typically
// derived from persisted reward and withdrawal records.
type Loader func(ctx context.Context, accountID string) (balance, totalEarned decimal.Decimal, err error)

// Ledger owns every account's balance and lifetime-earned total. All mutations
// of one account are serialised; different accounts never contend.
type Ledger interface {
	// Open makes the account known to the ledger. Opening an open account is a no-op.
	Open(ctx context.Context, accountID string) error
	Get(ctx context.Context, accountID string) (Account, error)
	Credit(ctx context.Context, accountID string, amount decimal.Decimal) (Account, error)
	Debit(ctx context.Context, accountID string, amount decimal.Decimal) (Account, error)
	// Update runs fn with the account locked. Postings made through tx are
	// applied only when fn returns nil.
	Update(ctx context.Context, accountID string, fn func(tx *Tx) error) (Account, error)
}

// Tx stages postings against a locked account.
type Tx struct {
	accountID   string
	balance     decimal.Decimal
	totalEarned decimal.Decimal
}

// AccountID returns the locked account.
func (t *Tx) AccountID() string { return t.accountID }

// Balance returns the balance including staged postings.
func (t *Tx) Balance() decimal.Decimal { return t.balance }

// TotalEarned returns the lifetime-earned total including staged postings.
func (t *Tx) TotalEarned() decimal.Decimal { return t.totalEarned }

// Credit stages an increase of balance and lifetime earnings.
func (t *Tx) Credit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	t.balance = t.balance.Add(amount)
	t.totalEarned = t.totalEarned.Add(amount)
	return nil
}

// Debit stages a decrease of balance. The balance never goes negative.
func (t *Tx) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if amount.GreaterThan(t.balance) {
		return ErrInsufficientBalance
	}
	t.balance = t.balance.Sub(amount)
	return nil
}
