package withdrawals

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the settlement state of a withdrawal.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record is a withdrawal request. Only the settlement fields change after creation.
type Record struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"userId"`
	Amount        decimal.Decimal `json:"amount"`
	Address       string          `json:"address"`
	Status        Status          `json:"status"`
	RequestedAt   time.Time       `json:"timestamp"`
	SettledAt     *time.Time      `json:"settledAt,omitempty"`
	Reference     string          `json:"reference,omitempty"`
	FailureReason string          `json:"failureReason,omitempty"`
}

// Settlement describes the outcome applied to a pending record.
type Settlement struct {
	Status    Status
	SettledAt time.Time
	Reference string
	Reason    string
}

// RequestInput is a withdrawal request for an account.
type RequestInput struct {
	AccountID string
	Amount    decimal.Decimal
	Address   string
}

// RequestResult carries the pending record and the debited balance.
type RequestResult struct {
	Record  Record
	Balance decimal.Decimal
}

// Totals is a sum and count over withdrawal records of every status.
type Totals struct {
	Amount decimal.Decimal
	Count  int
}
