package withdrawals

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptoearn/cryptoearn/internal/clock"
	"github.com/cryptoearn/cryptoearn/internal/ledger"
	"github.com/cryptoearn/cryptoearn/internal/logging"
	"github.com/cryptoearn/cryptoearn/internal/notification"
)

const testAddress = "bc1qxy2kgdygjrsqtzq2n0yrf2493p83kkfjhx0wlh"

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type fixture struct {
	svc      *Service
	ledger   ledger.Ledger
	repo     Repository
	clock    *clock.Fake
	notifier *notification.Recorder
}

func newFixture(t *testing.T, balance string, gateway Gateway) fixture {
	t.Helper()
	led := ledger.NewInMemory(nil)
	if err := led.Open(context.Background(), "acct-1"); err != nil {
		t.Fatalf("open: %v", err)
	}
	if balance != "" {
		ledger.SeedBalance(led, "acct-1", d(balance))
	}
	repo := NewMemoryRepository()
	clk := clock.NewFake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	rec := &notification.Recorder{}
	svc := NewService(led, repo, gateway, rec, clk, logging.Discard(), Config{SettlementDelay: 5 * time.Second})
	return fixture{svc: svc, ledger: led, repo: repo, clock: clk, notifier: rec}
}

func TestRequestDebitsAndSettles(t *testing.T) {
	f := newFixture(t, "50", nil)
	ctx := context.Background()

	res, err := f.svc.Request(ctx, RequestInput{AccountID: "acct-1", Amount: d("20"), Address: testAddress})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !res.Balance.Equal(d("30")) {
		t.Fatalf("expected balance 30, got %s", res.Balance)
	}
	if res.Record.Status != StatusPending {
		t.Fatalf("expected pending, got %s", res.Record.Status)
	}

	f.clock.Advance(4 * time.Second)
	if got, _ := f.repo.Get(ctx, res.Record.ID); got.Status != StatusPending {
		t.Fatalf("settled too early: %s", got.Status)
	}

	f.clock.Advance(time.Second)
	got, _ := f.repo.Get(ctx, res.Record.ID)
	if got.Status != StatusCompleted || got.Reference == "" || got.SettledAt == nil {
		t.Fatalf("expected completed with reference, got %+v", got)
	}

	acct, _ := f.ledger.Get(ctx, "acct-1")
	if !acct.Balance.Equal(d("30")) || !acct.TotalEarned.Equal(d("50")) {
		t.Fatalf("settlement must not post: %s / %s", acct.Balance, acct.TotalEarned)
	}

	msgs := f.notifier.Messages()
	if len(msgs) != 1 || msgs[0].Kind != notification.KindWithdrawalCompleted || msgs[0].AccountID != "acct-1" {
		t.Fatalf("unexpected notifications %+v", msgs)
	}
}

func TestRequestValidationOrder(t *testing.T) {
	f := newFixture(t, "10", nil)
	ctx := context.Background()

	cases := []struct {
		name    string
		amount  string
		address string
		want    error
	}{
		{"zero amount", "0", "short", ErrInvalidAmount},
		{"negative amount", "-1", testAddress, ErrInvalidAmount},
		{"balance before address", "50", "short", ErrInsufficientBalance},
		{"short address", "5", "short", ErrInvalidAddress},
		{"blank address", "5", "          ", ErrInvalidAddress},
		{"multibyte address", "5", "ééééé", ErrInvalidAddress},
	}
	for _, tc := range cases {
		_, err := f.svc.Request(ctx, RequestInput{AccountID: "acct-1", Amount: d(tc.amount), Address: tc.address})
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	acct, _ := f.ledger.Get(ctx, "acct-1")
	if !acct.Balance.Equal(d("10")) {
		t.Fatalf("rejections must not debit, balance %s", acct.Balance)
	}
	if list, _ := f.svc.List(ctx, "acct-1"); len(list) != 0 {
		t.Fatalf("rejections must not record, got %d", len(list))
	}
}

func TestRequestExactBalance(t *testing.T) {
	f := newFixture(t, "12.5", nil)
	res, err := f.svc.Request(context.Background(), RequestInput{AccountID: "acct-1", Amount: d("12.5"), Address: testAddress})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !res.Balance.IsZero() {
		t.Fatalf("expected zero balance, got %s", res.Balance)
	}
}

func TestSettlementFailureKeepsDebit(t *testing.T) {
	gateway := GatewayFunc(func(context.Context, PayoutRequest) (PayoutDecision, error) {
		return PayoutDecision{}, errors.New("provider unavailable")
	})
	f := newFixture(t, "40", gateway)
	ctx := context.Background()

	res, err := f.svc.Request(ctx, RequestInput{AccountID: "acct-1", Amount: d("15"), Address: testAddress})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	f.clock.Advance(5 * time.Second)

	got, _ := f.repo.Get(ctx, res.Record.ID)
	if got.Status != StatusFailed || got.FailureReason != "provider unavailable" {
		t.Fatalf("expected failed record, got %+v", got)
	}
	acct, _ := f.ledger.Get(ctx, "acct-1")
	if !acct.Balance.Equal(d("25")) {
		t.Fatalf("failed withdrawals are not refunded, balance %s", acct.Balance)
	}
	if msgs := f.notifier.Messages(); len(msgs) != 1 || msgs[0].Kind != notification.KindWithdrawalFailed {
		t.Fatalf("unexpected notifications %+v", msgs)
	}
}

func TestDeclinedPayoutFails(t *testing.T) {
	gateway := GatewayFunc(func(context.Context, PayoutRequest) (PayoutDecision, error) {
		return PayoutDecision{Reference: "ref-1", Reason: "address blocked"}, nil
	})
	f := newFixture(t, "40", gateway)
	res, _ := f.svc.Request(context.Background(), RequestInput{AccountID: "acct-1", Amount: d("5"), Address: testAddress})
	f.clock.Advance(5 * time.Second)

	got, _ := f.repo.Get(context.Background(), res.Record.ID)
	if got.Status != StatusFailed || got.Reference != "ref-1" || got.FailureReason != "address blocked" {
		t.Fatalf("unexpected record %+v", got)
	}
}

func TestSettledRecordsRejectTransitions(t *testing.T) {
	f := newFixture(t, "40", nil)
	ctx := context.Background()
	res, _ := f.svc.Request(ctx, RequestInput{AccountID: "acct-1", Amount: d("5"), Address: testAddress})
	f.clock.Advance(5 * time.Second)

	_, err := f.repo.Settle(ctx, res.Record.ID, Settlement{Status: StatusFailed, SettledAt: f.clock.Now()})
	var te *TransitionError
	if !errors.As(err, &te) || te.From != StatusCompleted || te.To != StatusFailed {
		t.Fatalf("expected transition error, got %v", err)
	}
	if _, err := f.repo.Settle(ctx, "missing", Settlement{Status: StatusCompleted}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture(t, "100", nil)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		res, err := f.svc.Request(ctx, RequestInput{AccountID: "acct-1", Amount: d("1"), Address: testAddress})
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		ids = append(ids, res.Record.ID)
		f.clock.Advance(time.Second)
	}

	list, err := f.svc.List(ctx, "acct-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 3 || list[0].ID != ids[2] || list[2].ID != ids[0] {
		t.Fatalf("unexpected order %+v", list)
	}
}

func TestConcurrentRequestsNeverOverdraw(t *testing.T) {
	f := newFixture(t, "10", nil)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Request(ctx, RequestInput{AccountID: "acct-1", Amount: d("1"), Address: testAddress}); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, ErrInsufficientBalance) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 10 {
		t.Fatalf("expected 10 withdrawals, got %d", succeeded)
	}
	acct, _ := f.ledger.Get(ctx, "acct-1")
	totals, _ := f.svc.Totals(ctx, "acct-1")
	if !acct.Balance.IsZero() || !totals.Amount.Equal(d("10")) {
		t.Fatalf("balance %s, withdrawn %s", acct.Balance, totals.Amount)
	}
}

func TestShutdownCancelsPendingSettlements(t *testing.T) {
	f := newFixture(t, "10", nil)
	ctx := context.Background()
	res, _ := f.svc.Request(ctx, RequestInput{AccountID: "acct-1", Amount: d("4"), Address: testAddress})
	if f.svc.Pending() != 1 {
		t.Fatalf("expected one scheduled settlement")
	}

	if err := f.svc.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	f.clock.Advance(time.Minute)

	got, _ := f.repo.Get(ctx, res.Record.ID)
	if got.Status != StatusPending {
		t.Fatalf("cancelled settlement must stay pending, got %s", got.Status)
	}
	if f.svc.Pending() != 0 || f.clock.Pending() != 0 {
		t.Fatalf("timers left behind")
	}
	if _, err := f.svc.Request(ctx, RequestInput{AccountID: "acct-1", Amount: d("1"), Address: testAddress}); err != nil {
		t.Fatalf("requests still accepted after shutdown: %v", err)
	}
	if f.svc.Pending() != 0 {
		t.Fatalf("nothing is scheduled after shutdown")
	}
}

func TestResumeSettlesLeftoverRecords(t *testing.T) {
	f := newFixture(t, "", nil)
	ctx := context.Background()
	requested := f.clock.Now().Add(-2 * time.Second)
	old := Record{ID: "w-old", AccountID: "acct-1", Amount: d("3"), Address: testAddress, Status: StatusPending, RequestedAt: requested}
	if err := f.repo.Append(ctx, old); err != nil {
		t.Fatalf("append: %v", err)
	}

	n, err := f.svc.Resume(ctx)
	if err != nil || n != 1 {
		t.Fatalf("resume: n=%d err=%v", n, err)
	}
	f.clock.Advance(3 * time.Second)
	if got, _ := f.repo.Get(ctx, "w-old"); got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
}
