package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/cryptoearn/cryptoearn/internal/clock"
)

// Service manages identity lifecycle.
type Service struct {
	repo  Repository
	clock clock.Clock
	cost  int
	// decoy is compared against when the email is unknown so both failure
	// paths do the same bcrypt work.
	decoy []byte
}

// Option customises a Service.
type Option func(*Service)

// WithHashCost overrides the bcrypt cost. Tests use bcrypt.MinCost.
func WithHashCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithClock sets the clock used to stamp creation times.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// NewService creates a new identity service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, clock: clock.Real(), cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	s.decoy, _ = bcrypt.GenerateFromPassword([]byte(uuid.NewString()), s.cost)
	return s
}

// Register creates an account and stores only the bcrypt digest of the password.
func (s *Service) Register(ctx context.Context, reg Registration) (Account, error) {
	if strings.TrimSpace(reg.Email) == "" {
		return Account{}, ErrEmailRequired
	}
	if reg.Password == "" {
		return Account{}, ErrPasswordRequired
	}
	if len(reg.Password) > MaxPasswordBytes {
		return Account{}, ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return Account{}, fmt.Errorf("hash password: %w", err)
	}

	account := Account{
		ID:           uuid.New().String(),
		Email:        reg.Email,
		Name:         reg.Name,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return Account{}, err
	}

	return account, nil
}

// Authenticate verifies credentials. Unknown emails and wrong passwords are
// indistinguishable to the caller.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (Account, error) {
	account, err := s.repo.FindByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.decoy, []byte(creds.Password))
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, err
	}

	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(creds.Password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}

	return account, nil
}

// Get returns the account with the given identifier.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.FindByID(ctx, id)
}

// Count returns the number of registered accounts.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}
