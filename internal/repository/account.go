// Package repository maps the engine's records onto namespaced store keys.
//
// Key layout (under the store namespace):
//
//	session          current Session
//	theme            theme preference
//	users            username -> Account
//	user_<name>      WalletRecord
//	tasks_<name>     task id -> TaskState
package repository

import (
	"context"
	"errors"
	"fmt"

	"clickearn/internal/model"
	"clickearn/internal/pkg/kv"
)

// Common errors for repository operations.
var (
	ErrAccountNotFound = errors.New("account not found")
)

// AccountRepository handles the account directory. All accounts live under a
// single key, so every write is a read-modify-write of the whole directory.
type AccountRepository struct {
	store *kv.Store
}

// NewAccountRepository creates a new AccountRepository instance.
func NewAccountRepository(store *kv.Store) *AccountRepository {
	return &AccountRepository{store: store}
}

func (r *AccountRepository) key() string {
	return r.store.Key("users")
}

// All returns the directory keyed by username.
func (r *AccountRepository) All(ctx context.Context) (map[string]model.Account, error) {
	accounts, err := kv.GetOr(ctx, r.store, r.key(), map[string]model.Account{})
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	if accounts == nil {
		accounts = map[string]model.Account{}
	}
	return accounts, nil
}

// Get retrieves an account by exact username.
// Returns ErrAccountNotFound if the account does not exist.
func (r *AccountRepository) Get(ctx context.Context, username string) (*model.Account, error) {
	accounts, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	acc, ok := accounts[username]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return &acc, nil
}

// FindByEmail retrieves the account whose email matches exactly.
func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	accounts, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, acc := range accounts {
		if acc.Email == email {
			return &acc, nil
		}
	}
	return nil, ErrAccountNotFound
}

// Exists checks if an account with the given username exists.
func (r *AccountRepository) Exists(ctx context.Context, username string) (bool, error) {
	_, err := r.Get(ctx, username)
	if errors.Is(err, ErrAccountNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Save inserts or replaces acc.
func (r *AccountRepository) Save(ctx context.Context, acc model.Account) error {
	accounts, err := r.All(ctx)
	if err != nil {
		return err
	}
	accounts[acc.Username] = acc
	return r.write(ctx, accounts)
}

// Rename moves the account stored under oldUsername to acc.Username in a
// single directory write.
func (r *AccountRepository) Rename(ctx context.Context, oldUsername string, acc model.Account) error {
	accounts, err := r.All(ctx)
	if err != nil {
		return err
	}
	if _, ok := accounts[oldUsername]; !ok {
		return ErrAccountNotFound
	}
	delete(accounts, oldUsername)
	accounts[acc.Username] = acc
	return r.write(ctx, accounts)
}

// Delete removes username from the directory. Deleting a missing account is
// not an error.
func (r *AccountRepository) Delete(ctx context.Context, username string) error {
	accounts, err := r.All(ctx)
	if err != nil {
		return err
	}
	if _, ok := accounts[username]; !ok {
		return nil
	}
	delete(accounts, username)
	return r.write(ctx, accounts)
}

func (r *AccountRepository) write(ctx context.Context, accounts map[string]model.Account) error {
	if err := r.store.Set(ctx, r.key(), accounts); err != nil {
		return fmt.Errorf("failed to save accounts: %w", err)
	}
	return nil
}
