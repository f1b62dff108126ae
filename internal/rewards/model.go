package rewards

import (
	"time"

	"github.com/shopspring/decimal"
)

// Record is an immutable reward fact.
type Record struct {
	ID        string          `json:"id"`
	AccountID string          `json:"userId"`
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	ClaimedAt time.Time       `json:"timestamp"`
}

// ClaimInput is a request to record a reward for an account.
type ClaimInput struct {
	AccountID string
	Method    string
	Amount    decimal.Decimal
}

// ClaimResult carries the new record and the balances it produced.
type ClaimResult struct {
	Record      Record
	Balance     decimal.Decimal
	TotalEarned decimal.Decimal
}

// Totals is a sum and count over reward records.
type Totals struct {
	Amount decimal.Decimal
	Count  int
}

// MethodStatus describes a method together with the caller's cooldown.
type MethodStatus struct {
	Method
	CooldownEndsAt *time.Time `json:"cooldownEndsAt,omitempty"`
}
