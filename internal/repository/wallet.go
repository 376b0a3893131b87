package repository

import (
	"context"
	"fmt"

	"clickearn/internal/model"
	"clickearn/internal/pkg/kv"
)

// WalletRepository handles per-user ledgers.
type WalletRepository struct {
	store *kv.Store
}

// NewWalletRepository creates a new WalletRepository instance.
func NewWalletRepository(store *kv.Store) *WalletRepository {
	return &WalletRepository{store: store}
}

// Key returns the store key of username's wallet.
func (r *WalletRepository) Key(username string) string {
	return r.store.Key("user", username)
}

// Get returns username's wallet, or an empty one if none was written.
func (r *WalletRepository) Get(ctx context.Context, username string) (model.WalletRecord, error) {
	rec, err := kv.GetOr(ctx, r.store, r.Key(username), model.NewWalletRecord())
	if err != nil {
		return model.WalletRecord{}, fmt.Errorf("failed to load wallet: %w", err)
	}
	if rec.Transactions == nil {
		rec.Transactions = []model.Transaction{}
	}
	if rec.WithdrawRequests == nil {
		rec.WithdrawRequests = []model.WithdrawRequest{}
	}
	return rec, nil
}

// Save replaces username's wallet.
func (r *WalletRepository) Save(ctx context.Context, username string, rec model.WalletRecord) error {
	if err := r.store.Set(ctx, r.Key(username), rec); err != nil {
		return fmt.Errorf("failed to save wallet: %w", err)
	}
	return nil
}

// Delete removes username's wallet.
func (r *WalletRepository) Delete(ctx context.Context, username string) error {
	return r.store.Remove(ctx, r.Key(username))
}
