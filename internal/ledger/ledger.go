package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/securebank/securebank/internal/validation"
)

var (
	// ErrInsufficientFunds occurs when the sender's balance does not cover the amount.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrAccountNotFound indicates the ledger has no balance for the account.
	ErrAccountNotFound = errors.New("ledger account not found")
	// ErrSameAccount rejects transfers whose sender and recipient coincide.
	ErrSameAccount = errors.New("sender and recipient must differ")
	// ErrInvalidAmount rejects zero or negative postings.
	ErrInvalidAmount = errors.New("amount must be positive")
)

const (
	// KindSend marks the debit half of a transfer, owned by the sender.
	KindSend = "SEND"
	// KindReceive marks the credit half of a transfer, owned by the recipient.
	KindReceive = "RECEIVE"
)

// Transaction is one immutable half of a transfer. Amount is negative for SEND rows
// and positive for RECEIVE rows.
type Transaction struct {
	ID          string
	TransferID  string
	AccountID   string
	Kind        string
	Amount      decimal.Decimal
	SenderID    string
	RecipientID string
	CreatedAt   time.Time
}

// CounterpartyID returns the other side of the transfer from the owner's view.
func (t Transaction) CounterpartyID() string {
	if t.Kind == KindSend {
		return t.RecipientID
	}
	return t.SenderID
}

// TransferResult captures the outcome of a committed transfer.
type TransferResult struct {
	TransferID       string
	SenderBalance    decimal.Decimal
	RecipientBalance decimal.Decimal
	CompletedAt      time.Time
}

// Ledger defines the contract implemented by ledger backends (e.g. Postgres).
type Ledger interface {
	EnsureAccount(ctx context.Context, accountID string, opening decimal.Decimal) error
	Balance(ctx context.Context, accountID string) (decimal.Decimal, error)
	// Transfer debits sender, credits recipient and appends the SEND/RECEIVE pair as a
	// single all-or-nothing unit.
	Transfer(ctx context.Context, senderID, recipientID string, amount decimal.Decimal) (TransferResult, error)
	// Recent returns up to limit transactions owned by the account, newest first.
	Recent(ctx context.Context, accountID string, limit int) ([]Transaction, error)
	// ResetBalances sets every account balance to amount and reports how many changed.
	ResetBalances(ctx context.Context, amount decimal.Decimal) (int64, error)
}

func checkTransfer(senderID, recipientID string, amount decimal.Decimal) error {
	if err := validation.PositiveAmount(amount); err != nil {
		return ErrInvalidAmount
	}
	if senderID == recipientID {
		return ErrSameAccount
	}
	return nil
}
