package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresLedger keeps balances on the accounts table and the transfer log in the
// transactions table. Account rows are created by the identity repository.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureAccount confirms the account row exists. The opening balance was written when
// the account was inserted, so it is not applied again here.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, accountID string, _ decimal.Decimal) error {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return ErrAccountNotFound
	}
	var exists bool
	if err := l.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrAccountNotFound
	}
	return nil
}

// Balance returns the current balance for the account.
func (l *PostgresLedger) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return decimal.Zero, ErrAccountNotFound
	}
	var balance string
	if err := l.db.QueryRow(ctx, `SELECT balance::text FROM accounts WHERE id = $1`, id).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(balance)
}

// Transfer moves amount from sender to recipient inside one database transaction. Both
// account rows are locked in id order so concurrent transfers on the same account
// serialize and opposite-direction transfers cannot deadlock.
func (l *PostgresLedger) Transfer(ctx context.Context, senderID, recipientID string, amount decimal.Decimal) (TransferResult, error) {
	if err := checkTransfer(senderID, recipientID, amount); err != nil {
		return TransferResult{}, err
	}
	sender, err := uuid.Parse(senderID)
	if err != nil {
		return TransferResult{}, ErrAccountNotFound
	}
	recipient, err := uuid.Parse(recipientID)
	if err != nil {
		return TransferResult{}, ErrAccountNotFound
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransferResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	first, second := sender, recipient
	if second.String() < first.String() {
		first, second = second, first
	}
	balances := make(map[uuid.UUID]decimal.Decimal, 2)
	for _, id := range []uuid.UUID{first, second} {
		bal, err := lockBalance(ctx, tx, id)
		if err != nil {
			return TransferResult{}, err
		}
		balances[id] = bal
	}

	if balances[sender].LessThan(amount) {
		return TransferResult{}, ErrInsufficientFunds
	}

	const updateBalance = `UPDATE accounts SET balance = balance + $2 WHERE id = $1`
	if _, err := tx.Exec(ctx, updateBalance, sender, amount.Neg().String()); err != nil {
		return TransferResult{}, fmt.Errorf("debit sender: %w", err)
	}
	if _, err := tx.Exec(ctx, updateBalance, recipient, amount.String()); err != nil {
		return TransferResult{}, fmt.Errorf("credit recipient: %w", err)
	}

	now := time.Now().UTC()
	transferID := uuid.New()
	const insertTx = `INSERT INTO transactions (id, transfer_id, account_id, kind, amount, sender_id, recipient_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.Exec(ctx, insertTx, uuid.New(), transferID, sender, KindSend, amount.Neg().String(), sender, recipient, now); err != nil {
		return TransferResult{}, fmt.Errorf("record send: %w", err)
	}
	if _, err := tx.Exec(ctx, insertTx, uuid.New(), transferID, recipient, KindReceive, amount.String(), sender, recipient, now); err != nil {
		return TransferResult{}, fmt.Errorf("record receive: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return TransferResult{}, err
	}

	return TransferResult{
		TransferID:       transferID.String(),
		SenderBalance:    balances[sender].Sub(amount),
		RecipientBalance: balances[recipient].Add(amount),
		CompletedAt:      now,
	}, nil
}

// Recent lists the account's own transactions, newest first.
func (l *PostgresLedger) Recent(ctx context.Context, accountID string, limit int) ([]Transaction, error) {
	id, err := uuid.Parse(accountID)
	if err != nil {
		return nil, ErrAccountNotFound
	}
	rows, err := l.db.Query(ctx, `SELECT id, transfer_id, account_id, kind, amount::text, sender_id, recipient_id, created_at
        FROM transactions WHERE account_id = $1 ORDER BY seq DESC LIMIT $2`, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			txID, transferID, ownerID, senderID, recipientID uuid.UUID
			amount                                           string
			t                                                Transaction
		)
		if err := rows.Scan(&txID, &transferID, &ownerID, &t.Kind, &amount, &senderID, &recipientID, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse amount: %w", err)
		}
		t.ID = txID.String()
		t.TransferID = transferID.String()
		t.AccountID = ownerID.String()
		t.SenderID = senderID.String()
		t.RecipientID = recipientID.String()
		t.CreatedAt = t.CreatedAt.UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// ResetBalances sets every account's balance to amount.
func (l *PostgresLedger) ResetBalances(ctx context.Context, amount decimal.Decimal) (int64, error) {
	cmd, err := l.db.Exec(ctx, `UPDATE accounts SET balance = $1`, amount.String())
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func lockBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID) (decimal.Decimal, error) {
	var balance string
	if err := tx.QueryRow(ctx, `SELECT balance::text FROM accounts WHERE id = $1 FOR UPDATE`, id).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrAccountNotFound
		}
		return decimal.Zero, err
	}
	return decimal.NewFromString(balance)
}
