package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/securebank/securebank/internal/identity"
	"github.com/securebank/securebank/internal/totp"
)

var (
	// ErrInvalidCredentials is the generic primary-credential failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrSecondFactorRequired means the password was right but 2FA is active and no code was sent.
	ErrSecondFactorRequired = errors.New("two-factor code required")
	// ErrInvalidSecondFactor means the password was right but the submitted code was not.
	ErrInvalidSecondFactor = errors.New("invalid two-factor code")
)

// State is a step of one login attempt.
type State int

const (
	StateAwaitingPrimary State = iota
	StateAwaitingSecondFactor
	StateAuthenticated
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateAwaitingPrimary:
		return "AWAITING_PRIMARY"
	case StateAwaitingSecondFactor:
		return "AWAITING_SECOND_FACTOR"
	case StateAuthenticated:
		return "AUTHENTICATED"
	case StateRejected:
		return "REJECTED"
	}
	return "UNKNOWN"
}

// LoginRequest carries one attempt. Code is optional.
type LoginRequest struct {
	Email    string
	Password string
	Code     string
}

// Outcome is where a login attempt ended. Account and Session are set only when
// State is StateAuthenticated.
type Outcome struct {
	State   State
	Account identity.Account
	Session Session
}

// Authenticator runs the password then optional TOTP login flow and owns session
// validation and revocation.
type Authenticator struct {
	accounts *identity.Service
	repo     identity.Repository
	tokens   *Tokens
	now      func() time.Time
}

func NewAuthenticator(accounts *identity.Service, repo identity.Repository, tokens *Tokens) *Authenticator {
	return &Authenticator{accounts: accounts, repo: repo, tokens: tokens, now: time.Now}
}

// WithClock overrides the time source for code validation and token expiry.
func (a *Authenticator) WithClock(now func() time.Time) *Authenticator {
	a.now = now
	a.tokens.now = now
	return a
}

// Tokens exposes the session signer.
func (a *Authenticator) Tokens() *Tokens { return a.tokens }

// Login evaluates one attempt. Every attempt re-checks the password, including
// attempts that carry a code.
func (a *Authenticator) Login(ctx context.Context, req LoginRequest) (Outcome, error) {
	state := StateAwaitingPrimary

	account, err := a.accounts.Authenticate(ctx, identity.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		if errors.Is(err, identity.ErrInvalidCredentials) {
			return Outcome{State: StateRejected}, ErrInvalidCredentials
		}
		return Outcome{State: state}, err
	}

	if account.TwoFactor.Active() {
		state = StateAwaitingSecondFactor
		code := strings.TrimSpace(req.Code)
		if code == "" {
			return Outcome{State: state}, ErrSecondFactorRequired
		}
		if !totp.Validate(code, account.TwoFactor.Secret, a.now()) {
			return Outcome{State: StateRejected}, ErrInvalidSecondFactor
		}
	}

	session, err := a.tokens.Issue(account)
	if err != nil {
		return Outcome{State: state}, err
	}
	return Outcome{State: StateAuthenticated, Account: account, Session: session}, nil
}

// ParseSession verifies the token and that it was issued at the account's current
// session version.
func (a *Authenticator) ParseSession(ctx context.Context, token string) (Session, error) {
	session, err := a.tokens.Parse(token)
	if err != nil {
		return Session{}, err
	}
	account, err := a.repo.FindByID(ctx, session.AccountID)
	if err != nil {
		if errors.Is(err, identity.ErrAccountNotFound) {
			return Session{}, ErrInvalidSession
		}
		return Session{}, err
	}
	if account.SessionVersion != session.Version {
		return Session{}, ErrInvalidSession
	}
	return session, nil
}

// Logout revokes every outstanding session of the account.
func (a *Authenticator) Logout(ctx context.Context, accountID string) error {
	if _, err := a.repo.IncrementSessionVersion(ctx, accountID); err != nil {
		return fmt.Errorf("bump session version: %w", err)
	}
	return nil
}
