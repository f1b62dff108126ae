package rewards

import (
	"fmt"
	"time"

	"github.com/cryptoearn/cryptoearn/internal/apperr"
	"github.com/cryptoearn/cryptoearn/internal/ledger"
)

var (
	ErrUnknownMethod = apperr.New(apperr.KindValidation, "unknown_method", "Invalid earning method")
	ErrInvalidAmount = ledger.ErrInvalidAmount
	ErrOnCooldown    = apperr.New(apperr.KindCooldown, "on_cooldown", "Earning method is cooling down")
)

// CooldownError reports how long the caller has to wait before claiming again.
type CooldownError struct {
	Method     string
	RetryAfter time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s is cooling down, retry in %s", e.Method, e.RetryAfter.Round(time.Second))
}

func (e *CooldownError) Unwrap() error { return ErrOnCooldown }
