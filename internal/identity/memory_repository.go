package identity

import (
	"context"
	"sort"
	"sync"
)

type memoryRepository struct {
	mu       sync.RWMutex
	accounts map[string]Account
	byEmail  map[string]string
}

// NewMemoryRepository builds an in-memory account store for tests and local runs.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		accounts: make(map[string]Account),
		byEmail:  make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, account Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[account.Email]; exists {
		return ErrEmailTaken
	}
	r.accounts[account.ID] = account
	r.byEmail[account.Email] = account.ID
	return nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return r.accounts[id], nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	account, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (r *memoryRepository) List(_ context.Context) ([]Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	accounts := make([]Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].CreatedAt.Before(accounts[j].CreatedAt) })
	return accounts, nil
}

func (r *memoryRepository) IncrementSessionVersion(_ context.Context, id string) (int, error) {
	var version int
	err := r.update(id, func(account *Account) error {
		account.SessionVersion++
		version = account.SessionVersion
		return nil
	})
	return version, err
}

func (r *memoryRepository) GetOrCreateTwoFactorSecret(_ context.Context, id, candidate string) (string, error) {
	var secret string
	err := r.update(id, func(account *Account) error {
		if account.TwoFactor.Secret == "" {
			account.TwoFactor.Secret = candidate
		}
		secret = account.TwoFactor.Secret
		return nil
	})
	return secret, err
}

func (r *memoryRepository) EnableTwoFactor(_ context.Context, id, secret string) error {
	return r.update(id, func(account *Account) error {
		if account.TwoFactor.Secret == "" || account.TwoFactor.Secret != secret {
			return ErrSecretMismatch
		}
		account.TwoFactor.Enabled = true
		account.TwoFactor.Verified = true
		return nil
	})
}

func (r *memoryRepository) DisableTwoFactor(_ context.Context, id, secret string) error {
	return r.update(id, func(account *Account) error {
		if account.TwoFactor.Secret == "" || account.TwoFactor.Secret != secret {
			return ErrSecretMismatch
		}
		account.TwoFactor = TwoFactorState{}
		return nil
	})
}

func (r *memoryRepository) update(id string, fn func(*Account) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return ErrAccountNotFound
	}
	if err := fn(&account); err != nil {
		return err
	}
	r.accounts[id] = account
	return nil
}
