package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists accounts and their two-factor state.
type Repository interface {
	Create(ctx context.Context, account Account) error
	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	List(ctx context.Context) ([]Account, error)
	IncrementSessionVersion(ctx context.Context, id string) (int, error)
	// GetOrCreateTwoFactorSecret stores candidate only when no secret exists yet and
	// returns whichever secret is persisted afterwards.
	GetOrCreateTwoFactorSecret(ctx context.Context, id, candidate string) (string, error)
	// EnableTwoFactor sets enabled and verified, provided the stored secret still equals secret.
	EnableTwoFactor(ctx context.Context, id, secret string) error
	// DisableTwoFactor clears both flags and the secret, provided the stored secret still equals secret.
	DisableTwoFactor(ctx context.Context, id, secret string) error
}

const uniqueViolation = "23505"

const accountColumns = `id, email, name, password_hash, session_version,
        two_factor_enabled, two_factor_verified, COALESCE(two_factor_secret, ''), created_at`

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new account.
func (r *PostgresRepository) Create(ctx context.Context, account Account) error {
	accountID, err := uuid.Parse(account.ID)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `INSERT INTO accounts (id, email, name, password_hash, balance, session_version, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		accountID, account.Email, account.Name, account.PasswordHash, account.OpeningBalance.String(), account.SessionVersion, account.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// FindByEmail fetches an account by its (case-insensitive) email.
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = lower($1)`, email)
	return scanAccount(row)
}

// FindByID fetches an account by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Account, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return Account{}, ErrAccountNotFound
	}
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, accountID)
	return scanAccount(row)
}

// List returns every account ordered by creation time.
func (r *PostgresRepository) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// IncrementSessionVersion bumps the account's session version in place and returns
// the new value.
func (r *PostgresRepository) IncrementSessionVersion(ctx context.Context, id string) (int, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return 0, ErrAccountNotFound
	}
	var version int
	err = r.db.QueryRow(ctx, `UPDATE accounts SET session_version = session_version + 1
        WHERE id = $1 RETURNING session_version`, accountID).Scan(&version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return version, nil
}

// GetOrCreateTwoFactorSecret persists candidate unless a secret already exists. The
// single UPDATE holds the row lock, so concurrent setup requests converge on one secret.
func (r *PostgresRepository) GetOrCreateTwoFactorSecret(ctx context.Context, id, candidate string) (string, error) {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return "", ErrAccountNotFound
	}
	var secret string
	err = r.db.QueryRow(ctx, `UPDATE accounts SET two_factor_secret = COALESCE(two_factor_secret, $2)
        WHERE id = $1 RETURNING two_factor_secret`, accountID, candidate).Scan(&secret)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrAccountNotFound
		}
		return "", err
	}
	return secret, nil
}

// EnableTwoFactor marks 2FA enabled and verified for the secret that was just proven.
func (r *PostgresRepository) EnableTwoFactor(ctx context.Context, id, secret string) error {
	return r.execOne(ctx, ErrSecretMismatch, `UPDATE accounts SET two_factor_enabled = TRUE, two_factor_verified = TRUE
        WHERE id = $1 AND two_factor_secret = $2`, id, secret)
}

// DisableTwoFactor clears the 2FA flags and secret in one statement.
func (r *PostgresRepository) DisableTwoFactor(ctx context.Context, id, secret string) error {
	return r.execOne(ctx, ErrSecretMismatch, `UPDATE accounts SET two_factor_enabled = FALSE, two_factor_verified = FALSE, two_factor_secret = NULL
        WHERE id = $1 AND two_factor_secret = $2`, id, secret)
}

func (r *PostgresRepository) execOne(ctx context.Context, notFound error, query string, id string, arg any) error {
	accountID, err := uuid.Parse(id)
	if err != nil {
		return ErrAccountNotFound
	}
	cmd, err := r.db.Exec(ctx, query, accountID, arg)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return notFound
	}
	return nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var (
		id        uuid.UUID
		createdAt time.Time
		account   Account
	)
	err := row.Scan(&id, &account.Email, &account.Name, &account.PasswordHash, &account.SessionVersion,
		&account.TwoFactor.Enabled, &account.TwoFactor.Verified, &account.TwoFactor.Secret, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	account.ID = id.String()
	account.CreatedAt = createdAt.UTC()
	return account, nil
}
