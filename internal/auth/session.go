package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/securebank/securebank/internal/identity"
)

// ErrInvalidSession covers malformed, expired, forged and revoked session tokens.
var ErrInvalidSession = errors.New("invalid or expired session")

// Claims is the signed session payload.
type Claims struct {
	Email   string `json:"email"`
	Name    string `json:"name"`
	Version int    `json:"ver"`
	jwt.RegisteredClaims
}

// Session is an authenticated identity derived from a verified token.
type Session struct {
	Token     string
	AccountID string
	Email     string
	Name      string
	Version   int
	ExpiresAt time.Time
}

// Tokens signs and verifies HS256 session tokens.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration, issuer string) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl, issuer: issuer, now: time.Now}
}

// TTL is the lifetime of newly issued sessions.
func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue signs a session for account at its current session version.
func (t *Tokens) Issue(account identity.Account) (Session, error) {
	now := t.now().UTC()
	exp := now.Add(t.ttl)
	claims := Claims{
		Email:   account.Email,
		Name:    account.Name,
		Version: account.SessionVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign session: %w", err)
	}
	return Session{
		Token:     signed,
		AccountID: account.ID,
		Email:     account.Email,
		Name:      account.Name,
		Version:   account.SessionVersion,
		ExpiresAt: exp,
	}, nil
}

// Parse checks signature, algorithm and expiry. It does not consult the account's
// current session version.
func (t *Tokens) Parse(token string) (Session, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	claims := &Claims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil || !parsed.Valid || claims.Subject == "" {
		return Session{}, ErrInvalidSession
	}
	return Session{
		Token:     token,
		AccountID: claims.Subject,
		Email:     claims.Email,
		Name:      claims.Name,
		Version:   claims.Version,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
