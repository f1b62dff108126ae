// Package stats aggregates platform and per-account totals from the record
// stores on demand.
package stats

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cryptoearn/cryptoearn/internal/apperr"
	"github.com/cryptoearn/cryptoearn/internal/ledger"
	"github.com/cryptoearn/cryptoearn/internal/rewards"
	"github.com/cryptoearn/cryptoearn/internal/withdrawals"
)

// AccountCounter reports the number of registered accounts.
type AccountCounter interface {
	Count(ctx context.Context) (int, error)
}

// UserStats are the caller's own totals.
type UserStats struct {
	Balance          decimal.Decimal `json:"balance"`
	TotalEarned      decimal.Decimal `json:"totalEarned"`
	TotalWithdrawn   decimal.Decimal `json:"totalWithdrawn"`
	EarningsCount    int             `json:"earningsCount"`
	WithdrawalsCount int             `json:"withdrawalsCount"`
}

// Snapshot is the response of GetStats.
type Snapshot struct {
	TotalUsers       int             `json:"totalUsers"`
	TotalEarnings    decimal.Decimal `json:"totalEarnings"`
	TotalWithdrawals decimal.Decimal `json:"totalWithdrawals"`
	UserStats        UserStats       `json:"userStats"`
}

// Service computes snapshots. Figures for different accounts are read
// independently and may reflect slightly different moments.
type Service struct {
	accounts    AccountCounter
	ledger      ledger.Ledger
	rewards     rewards.Repository
	withdrawals withdrawals.Repository
}

func NewService(accounts AccountCounter, l ledger.Ledger, rw rewards.Repository, wd withdrawals.Repository) *Service {
	return &Service{accounts: accounts, ledger: l, rewards: rw, withdrawals: wd}
}

// Snapshot returns global totals and the caller's own figures. An account the
// ledger does not know reports zero balances.
func (s *Service) Snapshot(ctx context.Context, accountID string) (Snapshot, error) {
	users, err := s.accounts.Count(ctx)
	if err != nil {
		return Snapshot{}, apperr.Internal(fmt.Errorf("count accounts: %w", err))
	}
	earned, err := s.rewards.GlobalTotals(ctx)
	if err != nil {
		return Snapshot{}, apperr.Internal(fmt.Errorf("reward totals: %w", err))
	}
	withdrawn, err := s.withdrawals.GlobalTotals(ctx)
	if err != nil {
		return Snapshot{}, apperr.Internal(fmt.Errorf("withdrawal totals: %w", err))
	}
	mine, err := s.rewards.AccountTotals(ctx, accountID)
	if err != nil {
		return Snapshot{}, apperr.Internal(fmt.Errorf("account reward totals: %w", err))
	}
	myWithdrawals, err := s.withdrawals.AccountTotals(ctx, accountID)
	if err != nil {
		return Snapshot{}, apperr.Internal(fmt.Errorf("account withdrawal totals: %w", err))
	}

	user := UserStats{
		Balance:          decimal.Zero,
		TotalEarned:      decimal.Zero,
		TotalWithdrawn:   myWithdrawals.Amount,
		EarningsCount:    mine.Count,
		WithdrawalsCount: myWithdrawals.Count,
	}
	if acct, err := s.ledger.Get(ctx, accountID); err == nil {
		user.Balance = acct.Balance
		user.TotalEarned = acct.TotalEarned
	}

	return Snapshot{
		TotalUsers:       users,
		TotalEarnings:    earned.Amount,
		TotalWithdrawals: withdrawn.Amount,
		UserStats:        user,
	}, nil
}

// BalanceLoader derives an account's starting balances from its persisted
// records: balance is rewards minus withdrawals of every status.
func BalanceLoader(rw rewards.Repository, wd withdrawals.Repository) ledger.Loader {
	return func(ctx context.Context, accountID string) (decimal.Decimal, decimal.Decimal, error) {
		earned, err := rw.AccountTotals(ctx, accountID)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("reward totals: %w", err)
		}
		withdrawn, err := wd.AccountTotals(ctx, accountID)
		if err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("withdrawal totals: %w", err)
		}
		return earned.Amount.Sub(withdrawn.Amount), earned.Amount, nil
	}
}
