package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"clickearn/internal/model"
	"clickearn/internal/repository"
)

// CreditMeta describes why a balance went up.
type CreditMeta struct {
	Type        string
	TaskID      string
	Description string
}

// WalletSummary is the dashboard view of a wallet.
type WalletSummary struct {
	Balance            decimal.Decimal
	TotalEarned        decimal.Decimal
	TransactionCount   int
	Completions        map[string]int
	PendingWithdrawals decimal.Decimal
	WithdrawCount      int
	Threshold          decimal.Decimal
	// ToThreshold is what is still missing before a withdrawal is allowed.
	ToThreshold decimal.Decimal
	// Progress is balance/threshold in percent, capped at 100.
	Progress    decimal.Decimal
	CanWithdraw bool
}

// WalletService handles balances, credits and withdrawal requests.
// Callers serialise writes per user.
type WalletService struct {
	wallets   *repository.WalletRepository
	threshold decimal.Decimal
	now       func() time.Time
}

// NewWalletService creates a new WalletService instance.
func NewWalletService(wallets *repository.WalletRepository, threshold decimal.Decimal, now func() time.Time) *WalletService {
	if now == nil {
		now = time.Now
	}
	return &WalletService{wallets: wallets, threshold: threshold, now: now}
}

// Threshold returns the minimum balance for a withdrawal request.
func (s *WalletService) Threshold() decimal.Decimal {
	return s.threshold
}

// Balance returns username's balance.
func (s *WalletService) Balance(ctx context.Context, username string) (decimal.Decimal, error) {
	rec, err := s.wallets.Get(ctx, username)
	if err != nil {
		return decimal.Zero, err
	}
	return rec.Balance, nil
}

// Record returns username's full ledger.
func (s *WalletService) Record(ctx context.Context, username string) (model.WalletRecord, error) {
	return s.wallets.Get(ctx, username)
}

// Credit adds amount, rounded to cents, and appends the matching transaction.
// It returns the new balance.
func (s *WalletService) Credit(ctx context.Context, username string, amount decimal.Decimal, meta CreditMeta) (decimal.Decimal, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}

	rec, err := s.wallets.Get(ctx, username)
	if err != nil {
		return decimal.Zero, err
	}

	rec.Balance = rec.Balance.Add(amount)
	rec.Transactions = append(rec.Transactions, model.Transaction{
		ID:          "txn_" + uuid.NewString(),
		Amount:      amount,
		Type:        meta.Type,
		TaskID:      meta.TaskID,
		Description: meta.Description,
		Timestamp:   s.now().UTC(),
	})

	if err := s.wallets.Save(ctx, username, rec); err != nil {
		return decimal.Zero, fmt.Errorf("failed to credit: %w", err)
	}

	log.Info().
		Str("username", username).
		Str("amount", amount.StringFixed(2)).
		Str("type", meta.Type).
		Str("task_id", meta.TaskID).
		Str("balance", rec.Balance.StringFixed(2)).
		Msg("Wallet credited")

	return rec.Balance, nil
}

// RequestWithdrawal appends a pending request for amount. The balance is left
// untouched: a request records intent, it does not pay out.
func (s *WalletService) RequestWithdrawal(ctx context.Context, username string, amount decimal.Decimal) (*model.WithdrawRequest, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	rec, err := s.wallets.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	if rec.Balance.LessThan(s.threshold) || amount.GreaterThan(rec.Balance) {
		return nil, ErrInsufficientBalance
	}

	req := model.WithdrawRequest{
		ID:        "wd_" + uuid.NewString(),
		Amount:    amount,
		Status:    model.WithdrawStatusPending,
		Timestamp: s.now().UTC(),
	}
	rec.WithdrawRequests = append(rec.WithdrawRequests, req)

	if err := s.wallets.Save(ctx, username, rec); err != nil {
		return nil, fmt.Errorf("failed to request withdrawal: %w", err)
	}

	log.Info().
		Str("username", username).
		Str("amount", amount.StringFixed(2)).
		Str("request_id", req.ID).
		Msg("Withdrawal requested")

	return &req, nil
}

// Summary aggregates the ledger for display.
func (s *WalletService) Summary(ctx context.Context, username string) (*WalletSummary, error) {
	rec, err := s.wallets.Get(ctx, username)
	if err != nil {
		return nil, err
	}
	return summarize(rec, s.threshold), nil
}

func summarize(rec model.WalletRecord, threshold decimal.Decimal) *WalletSummary {
	sum := &WalletSummary{
		Balance:            rec.Balance,
		TotalEarned:        decimal.Zero,
		TransactionCount:   len(rec.Transactions),
		Completions:        make(map[string]int),
		PendingWithdrawals: decimal.Zero,
		WithdrawCount:      len(rec.WithdrawRequests),
		Threshold:          threshold,
		ToThreshold:        decimal.Zero,
		Progress:           decimal.NewFromInt(100),
		CanWithdraw:        !rec.Balance.LessThan(threshold) && rec.Balance.IsPositive(),
	}

	for _, tx := range rec.Transactions {
		sum.TotalEarned = sum.TotalEarned.Add(tx.Amount)
		if tx.Type == model.TxTypeTaskReward && tx.TaskID != "" {
			sum.Completions[tx.TaskID]++
		}
	}
	for _, wr := range rec.WithdrawRequests {
		if wr.Status == model.WithdrawStatusPending {
			sum.PendingWithdrawals = sum.PendingWithdrawals.Add(wr.Amount)
		}
	}

	if rec.Balance.LessThan(threshold) {
		sum.ToThreshold = threshold.Sub(rec.Balance)
		sum.Progress = rec.Balance.Div(threshold).Mul(decimal.NewFromInt(100)).Round(1)
	}
	return sum
}
