package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type inMemoryLedger struct {
	mu           sync.RWMutex
	balances     map[string]decimal.Decimal
	transactions map[string][]Transaction
}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit tests and
// local runs without Postgres.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances:     make(map[string]decimal.Decimal),
		transactions: make(map[string][]Transaction),
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, accountID string, opening decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[accountID]; !exists {
		l.balances[accountID] = opening
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, accountID string) (decimal.Decimal, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[accountID]
	if !exists {
		return decimal.Zero, ErrAccountNotFound
	}
	return balance, nil
}

func (l *inMemoryLedger) Transfer(_ context.Context, senderID, recipientID string, amount decimal.Decimal) (TransferResult, error) {
	if err := checkTransfer(senderID, recipientID, amount); err != nil {
		return TransferResult{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	senderBalance, ok := l.balances[senderID]
	if !ok {
		return TransferResult{}, ErrAccountNotFound
	}
	recipientBalance, ok := l.balances[recipientID]
	if !ok {
		return TransferResult{}, ErrAccountNotFound
	}
	if senderBalance.LessThan(amount) {
		return TransferResult{}, ErrInsufficientFunds
	}

	senderBalance = senderBalance.Sub(amount)
	recipientBalance = recipientBalance.Add(amount)
	l.balances[senderID] = senderBalance
	l.balances[recipientID] = recipientBalance

	now := time.Now().UTC()
	transferID := uuid.NewString()
	l.transactions[senderID] = append(l.transactions[senderID], Transaction{
		ID: uuid.NewString(), TransferID: transferID, AccountID: senderID, Kind: KindSend,
		Amount: amount.Neg(), SenderID: senderID, RecipientID: recipientID, CreatedAt: now,
	})
	l.transactions[recipientID] = append(l.transactions[recipientID], Transaction{
		ID: uuid.NewString(), TransferID: transferID, AccountID: recipientID, Kind: KindReceive,
		Amount: amount, SenderID: senderID, RecipientID: recipientID, CreatedAt: now,
	})

	return TransferResult{
		TransferID:       transferID,
		SenderBalance:    senderBalance,
		RecipientBalance: recipientBalance,
		CompletedAt:      now,
	}, nil
}

func (l *inMemoryLedger) Recent(_ context.Context, accountID string, limit int) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	owned := l.transactions[accountID]
	if limit <= 0 || limit > len(owned) {
		limit = len(owned)
	}
	out := make([]Transaction, 0, limit)
	for i := len(owned) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, owned[i])
	}
	return out, nil
}

func (l *inMemoryLedger) ResetBalances(_ context.Context, amount decimal.Decimal) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id := range l.balances {
		l.balances[id] = amount
	}
	return int64(len(l.balances)), nil
}
