package rewards

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cryptoearn/cryptoearn/internal/apperr"
	"github.com/cryptoearn/cryptoearn/internal/clock"
	"github.com/cryptoearn/cryptoearn/internal/ledger"
	"github.com/cryptoearn/cryptoearn/internal/logging"
	"github.com/cryptoearn/cryptoearn/internal/metrics"
)

const (
	// HistoryLimit caps ListEarnings responses.
	HistoryLimit = 50
)

// maxClaimAmount is the ceiling applied to every claim regardless of method.
var maxClaimAmount = decimal.NewFromInt(100)

// Config tunes claim validation.
type Config struct {
	// EnforceCooldown rejects claims while the method's cooldown is running.
	// The historical behaviour only gated claims in the client.
	EnforceCooldown bool
	// EnforceMethodBounds additionally requires amounts inside the method's
	// [MinAmount, MaxAmount] range.
	EnforceMethodBounds bool
}

// Service records reward claims and credits the ledger.
type Service struct {
	ledger    ledger.Ledger
	repo      Repository
	cooldowns CooldownStore
	catalog   *Catalog
	clock     clock.Clock
	logger    *slog.Logger
	cfg       Config
}

// NewService wires a reward engine. A nil catalog uses DefaultCatalog and a nil
// cooldown store keeps cooldowns in memory.
func NewService(l ledger.Ledger, repo Repository, cooldowns CooldownStore, catalog *Catalog, clk clock.Clock, logger *slog.Logger, cfg Config) *Service {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if cooldowns == nil {
		cooldowns = NewMemoryCooldowns()
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &Service{
		ledger:    l,
		repo:      repo,
		cooldowns: cooldowns,
		catalog:   catalog,
		clock:     clk,
		logger:    logging.Component(logger, "rewards"),
		cfg:       cfg,
	}
}

// Catalog exposes the method table.
func (s *Service) Catalog() *Catalog { return s.catalog }

// Claim validates a reward claim, appends exactly one record and credits the
// ledger by the claimed amount. Nothing changes when an error is returned.
func (s *Service) Claim(ctx context.Context, input ClaimInput) (ClaimResult, error) {
	method, ok := s.catalog.Lookup(input.Method)
	if !ok {
		metrics.ObserveClaim("unknown", "unknown_method", 0)
		return ClaimResult{}, ErrUnknownMethod
	}
	if err := s.validateAmount(method, input.Amount); err != nil {
		metrics.ObserveClaim(method.ID, "invalid_amount", 0)
		return ClaimResult{}, err
	}

	now := s.clock.Now()
	var record Record
	acct, err := s.ledger.Update(ctx, input.AccountID, func(tx *ledger.Tx) error {
		if s.cfg.EnforceCooldown {
			expiresAt, found, err := s.cooldowns.Get(ctx, tx.AccountID(), method.ID)
			if err != nil {
				return apperr.Internal(fmt.Errorf("read cooldown: %w", err))
			}
			if found && now.Before(expiresAt) {
				return &CooldownError{Method: method.ID, RetryAfter: expiresAt.Sub(now)}
			}
		}

		if err := tx.Credit(input.Amount); err != nil {
			return err
		}

		record = Record{
			ID:        uuid.NewString(),
			AccountID: tx.AccountID(),
			Method:    method.ID,
			Amount:    input.Amount,
			ClaimedAt: now,
		}
		if err := s.repo.Append(ctx, record); err != nil {
			return apperr.Internal(fmt.Errorf("append reward: %w", err))
		}

		// The record is committed from here on; cooldowns are advisory so a
		// storage failure is logged rather than undoing the claim.
		if method.Cooldown > 0 {
			if err := s.cooldowns.Set(ctx, tx.AccountID(), method.ID, now.Add(method.Cooldown)); err != nil {
				s.logger.Warn("store cooldown", slog.String("account_id", tx.AccountID()), slog.String("method", method.ID), slog.Any("error", err))
			}
		}
		return nil
	})
	if err != nil {
		metrics.ObserveClaim(method.ID, outcome(err), 0)
		return ClaimResult{}, err
	}

	amount, _ := record.Amount.Float64()
	metrics.ObserveClaim(method.ID, "success", amount)
	s.logger.Info("reward claimed",
		slog.String("account_id", record.AccountID),
		slog.String("record_id", record.ID),
		slog.String("method", record.Method),
		slog.String("amount", record.Amount.String()),
	)

	return ClaimResult{Record: record, Balance: acct.Balance, TotalEarned: acct.TotalEarned}, nil
}

func (s *Service) validateAmount(method Method, amount decimal.Decimal) error {
	if !amount.IsPositive() || amount.GreaterThan(maxClaimAmount) {
		return ErrInvalidAmount
	}
	if s.cfg.EnforceMethodBounds && (amount.LessThan(method.MinAmount) || amount.GreaterThan(method.MaxAmount)) {
		return ErrInvalidAmount
	}
	return nil
}

// History returns the account's most recent rewards, newest first. limit is
// clamped to (0, HistoryLimit].
func (s *Service) History(ctx context.Context, accountID string, limit int) ([]Record, error) {
	if limit <= 0 || limit > HistoryLimit {
		limit = HistoryLimit
	}
	records, err := s.repo.ListByAccount(ctx, accountID, limit)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list rewards: %w", err))
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Methods lists the method table with the caller's running cooldowns.
func (s *Service) Methods(ctx context.Context, accountID string) ([]MethodStatus, error) {
	now := s.clock.Now()
	methods := s.catalog.Methods()
	out := make([]MethodStatus, 0, len(methods))
	for _, m := range methods {
		status := MethodStatus{Method: m}
		expiresAt, found, err := s.cooldowns.Get(ctx, accountID, m.ID)
		if err != nil {
			return nil, apperr.Internal(fmt.Errorf("read cooldown: %w", err))
		}
		if found && now.Before(expiresAt) {
			at := expiresAt
			status.CooldownEndsAt = &at
		}
		out = append(out, status)
	}
	return out, nil
}

// Totals returns the reward sum and count for one account.
func (s *Service) Totals(ctx context.Context, accountID string) (Totals, error) {
	return s.repo.AccountTotals(ctx, accountID)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrOnCooldown):
		return "on_cooldown"
	case errors.Is(err, ledger.ErrNotFound):
		return "not_found"
	default:
		return string(apperr.KindOf(err))
	}
}

// remaining is used by the handler to render Retry-After.
func remaining(err error) (time.Duration, bool) {
	var cd *CooldownError
	if errors.As(err, &cd) {
		return cd.RetryAfter, true
	}
	return 0, false
}
