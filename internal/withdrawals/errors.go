package withdrawals

import (
	"fmt"

	"github.com/cryptoearn/cryptoearn/internal/apperr"
	"github.com/cryptoearn/cryptoearn/internal/ledger"
)

// MinAddressLength is the shortest destination address accepted.
const MinAddressLength = 10

var (
	ErrInvalidAmount       = ledger.ErrInvalidAmount
	ErrInsufficientBalance = ledger.ErrInsufficientBalance
	ErrInvalidAddress      = apperr.New(apperr.KindValidation, "invalid_address", "Invalid wallet address")
	ErrNotFound            = apperr.New(apperr.KindNotFound, "withdrawal_not_found", "Withdrawal not found")
)

// TransitionError reports an attempt to move a withdrawal out of a state that
// does not allow it.
type TransitionError struct {
	ID   string
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("withdrawal %s: invalid transition %s -> %s", e.ID, e.From, e.To)
}

func checkTransition(id string, from, to Status) error {
	if from != StatusPending || !to.Terminal() {
		return &TransitionError{ID: id, From: from, To: to}
	}
	return nil
}
