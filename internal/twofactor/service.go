// Package twofactor runs TOTP enrollment: setup, confirmation, disabling and status.
package twofactor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/securebank/securebank/internal/identity"
	"github.com/securebank/securebank/internal/totp"
)

var (
	// ErrInvalidCode rejects a code that does not match the stored secret.
	ErrInvalidCode = errors.New("invalid two-factor code")
	// ErrNotSetUp means no secret has been generated for the account yet.
	ErrNotSetUp = errors.New("two-factor authentication is not set up")
)

// Status is the enrollment state exposed to the account owner.
type Status struct {
	Enabled  bool
	Verified bool
}

type Service struct {
	repo   identity.Repository
	issuer string
	now    func() time.Time
	logger *slog.Logger
}

func NewService(repo identity.Repository, issuer string, logger *slog.Logger) *Service {
	return &Service{repo: repo, issuer: issuer, now: time.Now, logger: logger}
}

// WithClock overrides the time source used to check codes.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Setup returns enrollment material. The secret is created on the first call and
// reused afterwards, so concurrent or repeated calls all see the same secret.
func (s *Service) Setup(ctx context.Context, accountID string) (totp.Enrollment, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return totp.Enrollment{}, err
	}

	secret := account.TwoFactor.Secret
	if secret == "" {
		candidate, err := totp.NewSecret(s.issuer, account.Email)
		if err != nil {
			return totp.Enrollment{}, err
		}
		secret, err = s.repo.GetOrCreateTwoFactorSecret(ctx, account.ID, candidate)
		if err != nil {
			return totp.Enrollment{}, err
		}
		if secret == candidate && s.logger != nil {
			s.logger.Info("twofactor.secret created", slog.String("account_id", account.ID))
		}
	}

	return totp.NewEnrollment(s.issuer, account.Email, secret)
}

// Confirm enables 2FA when code matches the pending secret.
func (s *Service) Confirm(ctx context.Context, accountID, code string) error {
	secret, err := s.checkCode(ctx, accountID, code)
	if err != nil {
		return err
	}
	if err := s.repo.EnableTwoFactor(ctx, accountID, secret); err != nil {
		if errors.Is(err, identity.ErrSecretMismatch) {
			return ErrInvalidCode
		}
		return err
	}
	return nil
}

// Disable clears 2FA state, including the secret, when code is valid.
func (s *Service) Disable(ctx context.Context, accountID, code string) error {
	secret, err := s.checkCode(ctx, accountID, code)
	if err != nil {
		return err
	}
	if err := s.repo.DisableTwoFactor(ctx, accountID, secret); err != nil {
		if errors.Is(err, identity.ErrSecretMismatch) {
			return ErrInvalidCode
		}
		return err
	}
	return nil
}

// Status reports the account's enrollment flags. It has no side effects.
func (s *Service) Status(ctx context.Context, accountID string) (Status, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return Status{}, err
	}
	return Status{Enabled: account.TwoFactor.Enabled, Verified: account.TwoFactor.Verified}, nil
}

func (s *Service) checkCode(ctx context.Context, accountID, code string) (string, error) {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	secret := account.TwoFactor.Secret
	if secret == "" {
		return "", ErrNotSetUp
	}
	if !totp.Validate(code, secret, s.now()) {
		return "", ErrInvalidCode
	}
	return secret, nil
}
