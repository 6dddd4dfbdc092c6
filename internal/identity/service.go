package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/securebank/securebank/internal/validation"
)

const minPasswordLength = 8

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// Service manages the account lifecycle and primary credential checks.
type Service struct {
	repo            Repository
	startingBalance decimal.Decimal
	hashCost        int
}

// NewService creates a new identity service. New accounts are opened with startingBalance.
func NewService(repo Repository, startingBalance decimal.Decimal) *Service {
	return &Service{repo: repo, startingBalance: startingBalance, hashCost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *Service) WithHashCost(cost int) *Service {
	s.hashCost = cost
	return s
}

// Register validates the input and opens a new account with a hashed password.
func (s *Service) Register(ctx context.Context, input RegisterInput) (Account, error) {
	email := validation.NormalizeEmail(input.Email)
	name := strings.TrimSpace(input.Name)

	var errs validation.Errors
	if name == "" {
		errs.Add("name", "name is required")
	}
	if !validation.ValidEmail(email) {
		errs.Add("email", "email is invalid")
	}
	if len(input.Password) < minPasswordLength {
		errs.Add("password", "password must be at least 8 characters")
	}
	if err := errs.Err(); err != nil {
		return Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), s.hashCost)
	if err != nil {
		return Account{}, err
	}

	account := Account{
		ID:             uuid.New().String(),
		Email:          email,
		Name:           name,
		PasswordHash:   hash,
		OpeningBalance: s.startingBalance,
		CreatedAt:      time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, account); err != nil {
		return Account{}, err
	}

	return account, nil
}

// Authenticate verifies primary credentials. Unknown emails and wrong passwords both
// return ErrInvalidCredentials; unknown emails still pay for one bcrypt comparison.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (Account, error) {
	account, err := s.repo.FindByEmail(ctx, validation.NormalizeEmail(creds.Email))
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			_ = bcrypt.CompareHashAndPassword(placeholderHash(), []byte(creds.Password))
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, err
	}

	if err := bcrypt.CompareHashAndPassword(account.PasswordHash, []byte(creds.Password)); err != nil {
		return Account{}, ErrInvalidCredentials
	}

	return account, nil
}

// Get fetches an account by identifier.
func (s *Service) Get(ctx context.Context, id string) (Account, error) {
	return s.repo.FindByID(ctx, id)
}

// FindByEmail resolves an account by case-insensitive email.
func (s *Service) FindByEmail(ctx context.Context, email string) (Account, error) {
	return s.repo.FindByEmail(ctx, validation.NormalizeEmail(email))
}

// List returns all accounts.
func (s *Service) List(ctx context.Context) ([]Account, error) {
	return s.repo.List(ctx)
}

func placeholderHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("placeholder-password"), bcrypt.DefaultCost)
	})
	return dummyHash
}
