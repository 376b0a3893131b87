package service

import (
	"time"

	"github.com/shopspring/decimal"

	"clickearn/internal/catalog"
	"clickearn/internal/pkg/lock"
	"clickearn/internal/repository"
)

// Options configures NewServices.
type Options struct {
	Catalog           *catalog.Catalog
	Cooldown          time.Duration
	WithdrawThreshold decimal.Decimal
	// Now is the clock shared by every service. Nil means time.Now.
	Now func() time.Time
	// LockWait bounds how long a click waits for the account lock.
	// Zero means DefaultLockWait.
	LockWait time.Duration
}

// DefaultLockWait is the lock wait used when Options.LockWait is zero.
const DefaultLockWait = 5 * time.Second

// Services groups the services that share one store and one lock table.
type Services struct {
	Sessions *SessionService
	Accounts *AccountService
	Wallet   *WalletService
	Rewards  *RewardService
	Tasks    *TaskService
	Locks    *lock.UserLock
}

// NewServices wires the services over repos.
func NewServices(repos *repository.Repositories, opts Options) *Services {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	cat := opts.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	lockWait := opts.LockWait
	if lockWait <= 0 {
		lockWait = DefaultLockWait
	}

	locks := lock.NewUserLock()
	sessions := NewSessionService(repos.Sessions)
	wallet := NewWalletService(repos.Wallets, opts.WithdrawThreshold, now)
	rewards := NewRewardService(repos.Tasks, wallet, opts.Cooldown, now)

	return &Services{
		Sessions: sessions,
		Accounts: NewAccountService(repos, sessions, locks, now),
		Wallet:   wallet,
		Rewards:  rewards,
		Tasks:    NewTaskService(repos.Tasks, cat, rewards, locks, lockWait, now),
		Locks:    locks,
	}
}
