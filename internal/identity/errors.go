package identity

import "errors"

var (
	// ErrInvalidCredentials is returned for both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountNotFound indicates no account matches the lookup key.
	ErrAccountNotFound = errors.New("account not found")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already exists")
	// ErrSecretMismatch indicates a compare-and-set on the 2FA secret lost a race.
	ErrSecretMismatch = errors.New("two-factor secret changed")
)
