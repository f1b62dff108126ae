package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cryptoearn/cryptoearn/internal/apperr"
	"github.com/cryptoearn/cryptoearn/internal/identity"
	"github.com/cryptoearn/cryptoearn/internal/ledger"
	"github.com/cryptoearn/cryptoearn/internal/logging"
)

// Profile is the public view of an account. It never carries the password digest.
type Profile struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	Balance     decimal.Decimal `json:"balance"`
	TotalEarned decimal.Decimal `json:"totalEarned"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Session is returned by Register and Login.
type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      Profile   `json:"user"`
}

// Service orchestrates identity, ledger provisioning and token issuance.
type Service struct {
	ids    *identity.Service
	ledger ledger.Ledger
	tokens *TokenIssuer
	logger *slog.Logger
}

func NewService(ids *identity.Service, l ledger.Ledger, tokens *TokenIssuer, logger *slog.Logger) *Service {
	return &Service{ids: ids, ledger: l, tokens: tokens, logger: logging.Component(logger, "auth")}
}

// Register creates the identity, opens its ledger account and signs a token.
func (s *Service) Register(ctx context.Context, reg identity.Registration) (Session, error) {
	account, err := s.ids.Register(ctx, reg)
	if err != nil {
		return Session{}, err
	}
	session, err := s.session(ctx, account)
	if err != nil {
		return Session{}, err
	}
	s.logger.Info("account registered", slog.String("account_id", account.ID))
	return session, nil
}

// Login authenticates and signs a token. The ledger account is opened (and
// rehydrated from persisted records) if this process has not seen it yet.
func (s *Service) Login(ctx context.Context, creds identity.Credentials) (Session, error) {
	account, err := s.ids.Authenticate(ctx, creds)
	if err != nil {
		return Session{}, err
	}
	return s.session(ctx, account)
}

func (s *Service) session(ctx context.Context, account identity.Account) (Session, error) {
	if err := s.ledger.Open(ctx, account.ID); err != nil {
		return Session{}, apperr.Internal(fmt.Errorf("open ledger account: %w", err))
	}
	token, exp, err := s.tokens.Issue(account)
	if err != nil {
		return Session{}, apperr.Internal(err)
	}
	profile, err := s.profile(ctx, account)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, User: profile}, nil
}

// Profile returns the public view of the account.
func (s *Service) Profile(ctx context.Context, accountID string) (Profile, error) {
	account, err := s.ids.Get(ctx, accountID)
	if err != nil {
		return Profile{}, err
	}
	return s.profile(ctx, account)
}

func (s *Service) profile(ctx context.Context, account identity.Account) (Profile, error) {
	bal, err := s.ledger.Get(ctx, account.ID)
	if errors.Is(err, ledger.ErrNotFound) {
		if err := s.ledger.Open(ctx, account.ID); err != nil {
			return Profile{}, apperr.Internal(fmt.Errorf("open ledger account: %w", err))
		}
		bal, err = s.ledger.Get(ctx, account.ID)
	}
	if err != nil {
		return Profile{}, err
	}
	return Profile{
		ID:          account.ID,
		Email:       account.Email,
		Name:        account.Name,
		Balance:     bal.Balance,
		TotalEarned: bal.TotalEarned,
		CreatedAt:   account.CreatedAt,
	}, nil
}

// Resolve verifies a bearer token and returns the account it names. A valid
// token for an account that no longer exists yields identity.ErrNotFound.
func (s *Service) Resolve(ctx context.Context, token string) (string, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return "", err
	}
	if _, err := s.ids.Get(ctx, claims.Subject); err != nil {
		return "", err
	}
	if err := s.ledger.Open(ctx, claims.Subject); err != nil {
		return "", apperr.Internal(fmt.Errorf("open ledger account: %w", err))
	}
	return claims.Subject, nil
}
