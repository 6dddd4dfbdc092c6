package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/securebank/securebank/internal/events"
	"github.com/securebank/securebank/internal/identity"
	"github.com/securebank/securebank/internal/ledger"
	"github.com/securebank/securebank/internal/notification"
	"github.com/securebank/securebank/internal/validation"
)

// RecentLimit caps how many transactions Recent returns.
const RecentLimit = 10

const afterCommitTimeout = 3 * time.Second

var (
	// ErrInvalidInput wraps validation.Errors describing the rejected fields.
	ErrInvalidInput = errors.New("invalid transfer request")
	// ErrRecipientNotFound means no account is registered under the recipient email.
	ErrRecipientNotFound = errors.New("recipient not found")
)

// Service moves money between accounts and reports account activity.
type Service struct {
	ledger    ledger.Ledger
	accounts  *identity.Service
	notifier  notification.Notifier
	publisher events.Publisher
	logger    *slog.Logger
}

// NewService constructs a payment service. notifier and publisher may be nil.
func NewService(l ledger.Ledger, accounts *identity.Service, notifier notification.Notifier, publisher events.Publisher, logger *slog.Logger) *Service {
	return &Service{ledger: l, accounts: accounts, notifier: notifier, publisher: publisher, logger: logger}
}

// TransferInput captures the data needed to move funds to another customer.
type TransferInput struct {
	SenderID       string
	RecipientEmail string
	Amount         decimal.Decimal
}

// TransferResult describes the committed transfer from the sender's view.
type TransferResult struct {
	TransferID  string
	RecipientID string
	Balance     decimal.Decimal
	CompletedAt time.Time
}

// Activity is a transaction annotated with the emails of both parties.
type Activity struct {
	ID                string
	TransferID        string
	Kind              string
	Amount            decimal.Decimal
	SenderID          string
	RecipientID       string
	SenderEmail       string
	RecipientEmail    string
	CounterpartyEmail string
	CreatedAt         time.Time
}

// Profile is the signed-in account with its live balance.
type Profile struct {
	ID      string
	Name    string
	Email   string
	Balance decimal.Decimal
}

// Transfer validates the request, resolves the recipient and applies the ledger
// transfer. Notification and event publishing happen after commit and never undo it.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	email := validation.NormalizeEmail(input.RecipientEmail)

	var errs validation.Errors
	if !validation.ValidEmail(email) {
		errs.Add("recipientEmail", "recipient email is invalid")
	}
	if err := validation.PositiveAmount(input.Amount); err != nil {
		errs.Add("amount", err.Error())
	}
	if err := errs.Err(); err != nil {
		return TransferResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	recipient, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrAccountNotFound) {
			return TransferResult{}, ErrRecipientNotFound
		}
		return TransferResult{}, err
	}
	if recipient.ID == input.SenderID {
		errs.Add("recipientEmail", "cannot transfer to yourself")
		return TransferResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, errs.Err())
	}

	res, err := s.ledger.Transfer(ctx, input.SenderID, recipient.ID, input.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrSameAccount), errors.Is(err, ledger.ErrInvalidAmount):
			return TransferResult{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		default:
			return TransferResult{}, err
		}
	}

	s.afterCommit(ctx, input.SenderID, recipient.ID, input.Amount, res)

	return TransferResult{
		TransferID:  res.TransferID,
		RecipientID: recipient.ID,
		Balance:     res.SenderBalance,
		CompletedAt: res.CompletedAt,
	}, nil
}

func (s *Service) afterCommit(ctx context.Context, senderID, recipientID string, amount decimal.Decimal, res ledger.TransferResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), afterCommitTimeout)
	defer cancel()

	if s.notifier != nil {
		messages := []notification.Message{
			{Kind: notification.KindTransferReceived, Destination: recipientID, Body: amount.StringFixed(2)},
			{Kind: notification.KindTransferSent, Destination: senderID, Body: amount.StringFixed(2)},
		}
		for _, msg := range messages {
			if err := s.notifier.Send(ctx, msg); err != nil {
				s.warn("live update failed", err, slog.String("transfer_id", res.TransferID), slog.String("destination", msg.Destination))
			}
		}
	}

	if s.publisher != nil {
		event := events.TransferCompleted{
			TransferID:  res.TransferID,
			SenderID:    senderID,
			RecipientID: recipientID,
			Amount:      amount,
			OccurredAt:  res.CompletedAt,
		}
		if err := s.publisher.PublishTransferCompleted(ctx, event); err != nil {
			s.warn("transfer event publish failed", err, slog.String("transfer_id", res.TransferID))
		}
	}
}

func (s *Service) warn(msg string, err error, attrs ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(msg, append(attrs, slog.Any("error", err))...)
}

// Recent lists the account's newest transactions, at most RecentLimit.
func (s *Service) Recent(ctx context.Context, accountID string, limit int) ([]Activity, error) {
	if limit <= 0 || limit > RecentLimit {
		limit = RecentLimit
	}
	txs, err := s.ledger.Recent(ctx, accountID, limit)
	if err != nil {
		return nil, err
	}

	emails := make(map[string]string)
	lookup := func(id string) (string, error) {
		if email, ok := emails[id]; ok {
			return email, nil
		}
		account, err := s.accounts.Get(ctx, id)
		if err != nil {
			if errors.Is(err, identity.ErrAccountNotFound) {
				emails[id] = ""
				return "", nil
			}
			return "", err
		}
		emails[id] = account.Email
		return account.Email, nil
	}

	out := make([]Activity, 0, len(txs))
	for _, tx := range txs {
		senderEmail, err := lookup(tx.SenderID)
		if err != nil {
			return nil, err
		}
		recipientEmail, err := lookup(tx.RecipientID)
		if err != nil {
			return nil, err
		}
		counterparty := recipientEmail
		if tx.Kind == ledger.KindReceive {
			counterparty = senderEmail
		}
		out = append(out, Activity{
			ID:                tx.ID,
			TransferID:        tx.TransferID,
			Kind:              tx.Kind,
			Amount:            tx.Amount,
			SenderID:          tx.SenderID,
			RecipientID:       tx.RecipientID,
			SenderEmail:       senderEmail,
			RecipientEmail:    recipientEmail,
			CounterpartyEmail: counterparty,
			CreatedAt:         tx.CreatedAt,
		})
	}
	return out, nil
}

// Balance returns the account's current balance.
func (s *Service) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return s.ledger.Balance(ctx, accountID)
}

// Profile returns the account with its current balance.
func (s *Service) Profile(ctx context.Context, accountID string) (Profile, error) {
	account, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return Profile{}, err
	}
	balance, err := s.ledger.Balance(ctx, accountID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{ID: account.ID, Name: account.Name, Email: account.Email, Balance: balance}, nil
}
