package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/cryptoearn/cryptoearn/internal/apperr"
	"github.com/cryptoearn/cryptoearn/internal/clock"
	"github.com/cryptoearn/cryptoearn/internal/identity"
	"github.com/cryptoearn/cryptoearn/internal/ledger"
	"github.com/cryptoearn/cryptoearn/internal/logging"
)

func newTestService(loader ledger.Loader) (*Service, ledger.Ledger) {
	clk := clock.NewFake(testStart)
	ids := identity.NewService(identity.NewMemoryRepository(), identity.WithHashCost(bcrypt.MinCost), identity.WithClock(clk))
	led := ledger.NewInMemory(loader)
	return NewService(ids, led, NewTokenIssuer("secret", "cryptoearn", 24*time.Hour, clk), logging.Discard()), led
}

func TestRegisterLoginRoundTrip(t *testing.T) {
	svc, _ := newTestService(nil)
	ctx := context.Background()

	reg, err := svc.Register(ctx, identity.Registration{Email: "ada@example.com", Password: "hunter22", Name: "Ada"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !reg.User.Balance.IsZero() || !reg.User.TotalEarned.IsZero() {
		t.Fatalf("new accounts start at zero, got %+v", reg.User)
	}

	login, err := svc.Login(ctx, identity.Credentials{Email: "ada@example.com", Password: "hunter22"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if login.User.ID != reg.User.ID {
		t.Fatalf("login resolved %s, registered %s", login.User.ID, reg.User.ID)
	}

	accountID, err := svc.Resolve(ctx, login.Token)
	if err != nil || accountID != reg.User.ID {
		t.Fatalf("resolve: id=%s err=%v", accountID, err)
	}

	if _, err := svc.Login(ctx, identity.Credentials{Email: "ada@example.com", Password: "wrong"}); !errors.Is(err, identity.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestProfileReflectsLedger(t *testing.T) {
	svc, led := newTestService(nil)
	ctx := context.Background()

	reg, _ := svc.Register(ctx, identity.Registration{Email: "ada@example.com", Password: "pw", Name: "Ada"})
	if _, err := led.Credit(ctx, reg.User.ID, decimal.NewFromInt(12)); err != nil {
		t.Fatalf("credit: %v", err)
	}

	profile, err := svc.Profile(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if !profile.Balance.Equal(decimal.NewFromInt(12)) || profile.Email != "ada@example.com" {
		t.Fatalf("unexpected profile %+v", profile)
	}

	if _, err := svc.Profile(ctx, "ghost"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLoginRehydratesFromLoader(t *testing.T) {
	var loaded string
	svc, _ := newTestService(func(_ context.Context, id string) (decimal.Decimal, decimal.Decimal, error) {
		loaded = id
		return decimal.NewFromInt(7), decimal.NewFromInt(9), nil
	})
	ctx := context.Background()

	reg, _ := svc.Register(ctx, identity.Registration{Email: "ada@example.com", Password: "pw"})
	if loaded != reg.User.ID || !reg.User.Balance.Equal(decimal.NewFromInt(7)) {
		t.Fatalf("expected loader balance, got %+v", reg.User)
	}
}

func TestResolveUnknownAccountIsNotFound(t *testing.T) {
	svc, _ := newTestService(nil)
	token, _, _ := svc.tokens.Issue(identity.Account{ID: "deleted", Email: "x@example.com"})
	_, err := svc.Resolve(context.Background(), token)
	if !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if apperr.HTTPStatus(apperr.KindOf(err)) != 404 {
		t.Fatalf("expected 404 mapping, got kind %s", apperr.KindOf(err))
	}
}
