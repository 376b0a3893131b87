package repository

import "clickearn/internal/pkg/kv"

// Repositories groups every repository built on one store.
type Repositories struct {
	Store       *kv.Store
	Accounts    *AccountRepository
	Sessions    *SessionRepository
	Wallets     *WalletRepository
	Tasks       *TaskStateRepository
	Preferences *PreferenceRepository
}

// New wires all repositories to store.
func New(store *kv.Store) *Repositories {
	return &Repositories{
		Store:       store,
		Accounts:    NewAccountRepository(store),
		Sessions:    NewSessionRepository(store),
		Wallets:     NewWalletRepository(store),
		Tasks:       NewTaskStateRepository(store),
		Preferences: NewPreferenceRepository(store),
	}
}
