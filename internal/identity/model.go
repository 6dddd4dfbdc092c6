package identity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account represents a registered bank customer. OpeningBalance is the amount the
// ledger account starts with; it is set on registration and never tracks transfers.
// The live balance is only available from the ledger.
type Account struct {
	ID             string
	Email          string
	Name           string
	PasswordHash   []byte
	OpeningBalance decimal.Decimal
	SessionVersion int
	TwoFactor      TwoFactorState
	CreatedAt      time.Time
}

// TwoFactorState tracks TOTP enrollment for an account. Secret is empty until setup
// begins; Enabled is only ever set together with Verified.
type TwoFactorState struct {
	Enabled  bool
	Verified bool
	Secret   string
}

// Active reports whether login must demand a second factor.
func (s TwoFactorState) Active() bool {
	return s.Enabled && s.Verified
}

// Credentials are the primary login factors.
type Credentials struct {
	Email    string
	Password string
}

// RegisterInput captures the fields needed to open an account.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}
