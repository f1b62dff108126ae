package withdrawals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/cryptoearn/cryptoearn/internal/apperr"
	"github.com/cryptoearn/cryptoearn/internal/clock"
	"github.com/cryptoearn/cryptoearn/internal/ledger"
	"github.com/cryptoearn/cryptoearn/internal/logging"
	"github.com/cryptoearn/cryptoearn/internal/metrics"
	"github.com/cryptoearn/cryptoearn/internal/notification"
)

const (
	// DefaultSettlementDelay is how long a withdrawal stays pending.
	DefaultSettlementDelay = 5 * time.Second
	settleTimeout          = 10 * time.Second
)

// scheduled tracks one settlement timer.
type scheduled struct {
	timer clock.Timer
}

// Config tunes the processor.
type Config struct {
	SettlementDelay time.Duration
}

// Service debits the ledger for withdrawal requests and settles them after a
// delay. Settlement of one account is serialised with its postings.
type Service struct {
	ledger   ledger.Ledger
	repo     Repository
	gateway  Gateway
	notifier notification.Notifier
	clock    clock.Clock
	logger   *slog.Logger
	delay    time.Duration

	mu       sync.Mutex
	timers   map[string]*scheduled
	closed   bool
	inflight sync.WaitGroup
}

// NewService wires a withdrawal processor. Nil collaborators fall back to
// StaticGateway, a logging notifier and the wall clock.
func NewService(l ledger.Ledger, repo Repository, gateway Gateway, notifier notification.Notifier, clk clock.Clock, logger *slog.Logger, cfg Config) *Service {
	if gateway == nil {
		gateway = StaticGateway{}
	}
	if notifier == nil {
		notifier = notification.NewLoggerNotifier(logger)
	}
	if clk == nil {
		clk = clock.Real()
	}
	delay := cfg.SettlementDelay
	if delay <= 0 {
		delay = DefaultSettlementDelay
	}
	return &Service{
		ledger:   l,
		repo:     repo,
		gateway:  gateway,
		notifier: notifier,
		clock:    clk,
		logger:   logging.Component(logger, "withdrawals"),
		delay:    delay,
		timers:   make(map[string]*scheduled),
	}
}

// Request validates and records a withdrawal, debits the ledger and schedules
// settlement. Checks run in order: amount, balance, address.
func (s *Service) Request(ctx context.Context, input RequestInput) (RequestResult, error) {
	if !input.Amount.IsPositive() {
		metrics.ObserveWithdrawal("invalid_amount")
		return RequestResult{}, ErrInvalidAmount
	}
	address := strings.TrimSpace(input.Address)

	var record Record
	acct, err := s.ledger.Update(ctx, input.AccountID, func(tx *ledger.Tx) error {
		if input.Amount.GreaterThan(tx.Balance()) {
			return ErrInsufficientBalance
		}
		if utf8.RuneCountInString(address) < MinAddressLength {
			return ErrInvalidAddress
		}
		if err := tx.Debit(input.Amount); err != nil {
			return err
		}
		record = Record{
			ID:          uuid.NewString(),
			AccountID:   tx.AccountID(),
			Amount:      input.Amount,
			Address:     address,
			Status:      StatusPending,
			RequestedAt: s.clock.Now(),
		}
		if err := s.repo.Append(ctx, record); err != nil {
			return apperr.Internal(fmt.Errorf("append withdrawal: %w", err))
		}
		return nil
	})
	if err != nil {
		metrics.ObserveWithdrawal(outcome(err))
		return RequestResult{}, err
	}

	metrics.ObserveWithdrawal("success")
	s.logger.Info("withdrawal requested",
		slog.String("account_id", record.AccountID),
		slog.String("withdrawal_id", record.ID),
		slog.String("amount", record.Amount.String()),
	)
	s.schedule(record, s.delay)

	return RequestResult{Record: record, Balance: acct.Balance}, nil
}

// Resume schedules settlement for records left pending by a previous process.
func (s *Service) Resume(ctx context.Context) (int, error) {
	pending, err := s.repo.ListPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending withdrawals: %w", err)
	}
	now := s.clock.Now()
	for _, rec := range pending {
		if err := s.ledger.Open(ctx, rec.AccountID); err != nil {
			return 0, fmt.Errorf("open ledger account: %w", err)
		}
		wait := rec.RequestedAt.Add(s.delay).Sub(now)
		if wait < 0 {
			wait = 0
		}
		s.schedule(rec, wait)
	}
	metrics.ObservePendingRestored(len(pending))
	return len(pending), nil
}

func (s *Service) schedule(rec Record, after time.Duration) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	entry := &scheduled{}
	s.timers[rec.ID] = entry
	s.mu.Unlock()

	// The timer may fire before AfterFunc returns, so it is created unlocked.
	t := s.clock.AfterFunc(after, func() { s.settle(rec, entry) })

	s.mu.Lock()
	defer s.mu.Unlock()
	entry.timer = t
	if s.closed {
		t.Stop()
	}
}

func (s *Service) settle(rec Record, entry *scheduled) {
	s.mu.Lock()
	if s.timers[rec.ID] == entry {
		delete(s.timers, rec.ID)
	}
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()

	var settled Record
	_, err := s.ledger.Update(ctx, rec.AccountID, func(tx *ledger.Tx) error {
		outcome := Settlement{Status: StatusCompleted, SettledAt: s.clock.Now()}
		decision, err := s.gateway.Payout(ctx, PayoutRequest{
			WithdrawalID: rec.ID,
			AccountID:    rec.AccountID,
			Address:      rec.Address,
			Amount:       rec.Amount,
		})
		switch {
		case err != nil:
			outcome.Status = StatusFailed
			outcome.Reason = err.Error()
		case !decision.Approved:
			outcome.Status = StatusFailed
			outcome.Reference = decision.Reference
			outcome.Reason = decision.Reason
		default:
			outcome.Reference = decision.Reference
		}

		updated, err := s.repo.Settle(ctx, rec.ID, outcome)
		if err != nil {
			return err
		}
		settled = updated
		return nil
	})
	if err != nil {
		var te *TransitionError
		if errors.As(err, &te) {
			s.logger.Warn("withdrawal already settled", slog.String("withdrawal_id", rec.ID), slog.String("status", string(te.From)))
			return
		}
		s.logger.Error("settle withdrawal", slog.String("withdrawal_id", rec.ID), slog.Any("error", err))
		return
	}

	metrics.ObserveSettlement(string(settled.Status))
	s.logger.Info("withdrawal settled",
		slog.String("account_id", settled.AccountID),
		slog.String("withdrawal_id", settled.ID),
		slog.String("status", string(settled.Status)),
		slog.String("reference", settled.Reference),
	)
	s.notify(ctx, settled)
}

func (s *Service) notify(ctx context.Context, rec Record) {
	msg := notification.Message{
		Kind:      notification.KindWithdrawalCompleted,
		AccountID: rec.AccountID,
		Subject:   "Withdrawal completed",
		Body:      fmt.Sprintf("%s sent to %s", rec.Amount.String(), rec.Address),
	}
	if rec.Status == StatusFailed {
		msg.Kind = notification.KindWithdrawalFailed
		msg.Subject = "Withdrawal failed"
		msg.Body = fmt.Sprintf("%s to %s failed: %s", rec.Amount.String(), rec.Address, rec.FailureReason)
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.logger.Warn("send notification", slog.String("withdrawal_id", rec.ID), slog.Any("error", err))
	}
}

// List returns the account's withdrawals, newest first.
func (s *Service) List(ctx context.Context, accountID string) ([]Record, error) {
	records, err := s.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("list withdrawals: %w", err))
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

// Totals returns the withdrawal sum and count for one account.
func (s *Service) Totals(ctx context.Context, accountID string) (Totals, error) {
	return s.repo.AccountTotals(ctx, accountID)
}

// Pending reports how many settlements are scheduled.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Shutdown cancels scheduled settlements and waits for running ones. Cancelled
// records stay pending and are picked up by Resume on the next start.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	cancelled := 0
	for id, entry := range s.timers {
		if entry.timer != nil && entry.timer.Stop() {
			cancelled++
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if cancelled > 0 {
		s.logger.Info("settlements cancelled", slog.Int("count", cancelled))
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrInvalidAddress):
		return "invalid_address"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ledger.ErrNotFound):
		return "not_found"
	default:
		return string(apperr.KindOf(err))
	}
}
