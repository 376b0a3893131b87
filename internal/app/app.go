// Package app is the command surface a view layer drives. An App owns the
// process-scoped state: pending dwell checks and the countdown ticker. It
// starts empty and is torn down on logout, account deletion, data erasure
// and Close.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"clickearn/internal/catalog"
	"clickearn/internal/config"
	"clickearn/internal/dwell"
	"clickearn/internal/model"
	"clickearn/internal/pkg/kv"
	"clickearn/internal/repository"
	"clickearn/internal/service"
)

// Dependencies holds everything New needs.
type Dependencies struct {
	Config *config.Config
	Store  *kv.Store
	// OnDwell receives dwell outcomes so the view can re-render.
	OnDwell func(dwell.Event)

	// Test seams. Nil means the real clock and timers.
	Now       func() time.Time
	AfterFunc func(d time.Duration, f func()) dwell.Timer
	// TickInterval is the countdown period, one second by default.
	TickInterval time.Duration
}

// App is the controller.
type App struct {
	cfg      *config.Config
	store    *kv.Store
	repos    *repository.Repositories
	svc      *service.Services
	verifier *dwell.Verifier
	tick     time.Duration
	now      func() time.Time

	// ctx bounds every pending dwell entry.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	countdown *countdown
}

// New creates an App with empty process state.
func New(deps *Dependencies) (*App, error) {
	if deps.Config == nil || deps.Store == nil {
		return nil, errors.New("app needs a config and a store")
	}

	cat, err := deps.Config.Catalog()
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog: %w", err)
	}
	threshold, err := deps.Config.Rewards.Threshold()
	if err != nil {
		return nil, err
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	repos := repository.New(deps.Store)
	svc := service.NewServices(repos, service.Options{
		Catalog:           cat,
		Cooldown:          deps.Config.Rewards.Cooldown,
		WithdrawThreshold: threshold,
		Now:               now,
	})

	tick := deps.TickInterval
	if tick <= 0 {
		tick = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:    deps.Config,
		store:  deps.Store,
		repos:  repos,
		svc:    svc,
		tick:   tick,
		now:    now,
		ctx:    ctx,
		cancel: cancel,
	}
	a.verifier = dwell.New(svc.Tasks, dwell.Options{
		Min:       deps.Config.Dwell.Min,
		Margin:    deps.Config.Dwell.Margin,
		URL:       deps.Config.Ads.URL,
		Notify:    deps.OnDwell,
		Now:       now,
		AfterFunc: deps.AfterFunc,
	})

	log.Info().
		Int("tasks", cat.Len()).
		Dur("cooldown", deps.Config.Rewards.Cooldown).
		Str("withdraw_threshold", threshold.String()).
		Dur("dwell_min", deps.Config.Dwell.Min).
		Msg("App initialised")

	return a, nil
}

// Catalog returns the task catalogue.
func (a *App) Catalog() *catalog.Catalog {
	return a.svc.Tasks.Catalog()
}

// Close tears down process state. The store stays open.
func (a *App) Close() {
	a.teardown()
	a.cancel()
}

func (a *App) teardown() {
	a.verifier.Reset()
	a.StopCountdown()
}

// ============================================================================
// Account and session
// ============================================================================

// Register creates an account and logs it in.
func (a *App) Register(ctx context.Context, username, email, password string) (model.Session, error) {
	a.teardown()
	return a.svc.Accounts.Register(ctx, username, email, password)
}

// Login authenticates by username or email.
func (a *App) Login(ctx context.Context, usernameOrEmail, password string) (string, error) {
	a.teardown()
	return a.svc.Accounts.Login(ctx, usernameOrEmail, password)
}

// Logout ends the session and drops all process state.
func (a *App) Logout(ctx context.Context) error {
	a.teardown()
	return a.svc.Accounts.Logout(ctx)
}

// CurrentUser returns the logged-in username, if any.
func (a *App) CurrentUser(ctx context.Context) (string, bool, error) {
	return a.svc.Sessions.Current(ctx)
}

// Account returns the logged-in account.
func (a *App) Account(ctx context.Context) (*model.Account, error) {
	username, err := a.svc.Sessions.Require(ctx)
	if err != nil {
		return nil, err
	}
	return a.svc.Accounts.Get(ctx, username)
}

// UpdateProfile edits the logged-in user's username and email.
func (a *App) UpdateProfile(ctx context.Context, newUsername, newEmail string) (*model.Account, error) {
	username, err := a.svc.Sessions.Require(ctx)
	if err != nil {
		return nil, err
	}
	if newUsername != username {
		// Pending checks and the countdown are bound to the old name.
		a.teardown()
	}
	return a.svc.Accounts.UpdateProfile(ctx, username, newUsername, newEmail)
}

// DeleteAccount erases the logged-in account and its records.
func (a *App) DeleteAccount(ctx context.Context) error {
	username, err := a.svc.Sessions.Require(ctx)
	if err != nil {
		return err
	}
	a.teardown()
	return a.svc.Accounts.Erase(ctx, username)
}

// ============================================================================
// Wallet
// ============================================================================

// GetBalance returns the logged-in user's balance.
func (a *App) GetBalance(ctx context.Context) (decimal.Decimal, error) {
	username, err := a.svc.Sessions.Require(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return a.svc.Wallet.Balance(ctx, username)
}

// Wallet returns the logged-in user's full ledger.
func (a *App) Wallet(ctx context.Context) (model.WalletRecord, error) {
	username, err := a.svc.Sessions.Require(ctx)
	if err != nil {
		return model.WalletRecord{}, err
	}
	return a.svc.Wallet.Record(ctx, username)
}

// Summary returns the dashboard figures of the logged-in user.
func (a *App) Summary(ctx context.Context) (*service.WalletSummary, error) {
	username, err := a.svc.Sessions.Require(ctx)
	if err != nil {
		return nil, err
	}
	return a.svc.Wallet.Summary(ctx, username)
}

// RequestWithdrawal asks to cash out the whole balance.
func (a *App) RequestWithdrawal(ctx context.Context) (*model.WithdrawRequest, error) {
	username, err := a.svc.Sessions.Require(ctx)
	if err != nil {
		return nil, err
	}

	var req *model.WithdrawRequest
	err = a.svc.Locks.WithLock(username, func() error {
		balance, err := a.svc.Wallet.Balance(ctx, username)
		if err != nil {
			return err
		}
		req, err = a.svc.Wallet.RequestWithdrawal(ctx, username, balance)
		if errors.Is(err, service.ErrInvalidAmount) {
			return service.ErrInsufficientBalance
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// WithdrawThreshold returns the minimum balance for a withdrawal.
func (a *App) WithdrawThreshold() decimal.Decimal {
	return a.svc.Wallet.Threshold()
}

// ============================================================================
// Tasks
// ============================================================================

// GetTaskState returns one task of the logged-in user.
func (a *App) GetTaskState(ctx context.Context, taskID string) (service.TaskView, error) {
	username, err := a.svc.Sessions.Require(ctx)
	if err != nil {
		return service.TaskView{}, err
	}
	entry, ok := a.Catalog().Get(taskID)
	if !ok {
		return service.TaskView{}, service.ErrTaskNotFound
	}
	state, err := a.svc.Tasks.ReadState(ctx, username, taskID)
	if err != nil {
		return service.TaskView{}, err
	}
	now := a.now()
	return service.TaskView{
		Entry:     entry,
		State:     state,
		Status:    state.Status(now),
		Remaining: state.Remaining(now),
	}, nil
}

// GetAllTaskStates returns every task of the logged-in user.
func (a *App) GetAllTaskStates(ctx context.Context) ([]service.TaskView, error) {
	username, err := a.svc.Sessions.Require(ctx)
	if err != nil {
		return nil, err
	}
	return a.svc.Tasks.AllStates(ctx, username)
}

// ClickAdSlot starts the dwell wait for an ad slot and returns the URL to
// open. Slots that cannot take a click are rejected up front; the click
// itself is recorded only once the dwell check passes.
//
// A task with every slot clicked but no completion finishes on the spot and
// returns an empty URL. Its outcome reaches OnDwell like any dwell commit.
func (a *App) ClickAdSlot(ctx context.Context, taskID string, adIndex int) (string, error) {
	view, err := a.GetTaskState(ctx, taskID)
	if err != nil {
		return "", err
	}
	if adIndex < 0 || adIndex >= view.Entry.AdsRequired {
		return "", service.ErrInvalidAdIndex
	}
	if view.Status == model.StatusLocked {
		return "", service.ErrTaskLocked
	}

	username, err := a.svc.Sessions.Require(ctx)
	if err != nil {
		return "", err
	}

	if view.State.AllClicked() && !view.State.Completed {
		a.verifier.Resume(a.ctx, username, taskID, adIndex)
		return "", nil
	}
	if view.State.Clicks[adIndex] {
		return "", service.ErrAlreadyClicked
	}
	return a.verifier.Begin(a.ctx, username, taskID, adIndex), nil
}

// FocusReturned signals that the user is back and runs the dwell checks.
func (a *App) FocusReturned(ctx context.Context) []dwell.Event {
	return a.verifier.FocusReturned(ctx)
}

// PendingDwells lists ad slots still waiting for their check.
func (a *App) PendingDwells() []dwell.Pending {
	return a.verifier.Pending()
}

// MinDwell returns how long an ad must stay open.
func (a *App) MinDwell() time.Duration {
	return a.verifier.MinDwell()
}

// ============================================================================
// Preferences and debug affordances
// ============================================================================

// SetThemePreference stores dark or light.
func (a *App) SetThemePreference(ctx context.Context, theme string) error {
	switch theme {
	case model.ThemeDark, model.ThemeLight:
	default:
		return fmt.Errorf("%w: %q", service.ErrInvalidTheme, theme)
	}
	return a.repos.Preferences.SetTheme(ctx, theme)
}

// GetThemePreference returns the stored theme.
func (a *App) GetThemePreference(ctx context.Context) (string, error) {
	return a.repos.Preferences.Theme(ctx)
}

// ForceRenewTask clears the progress and cooldown of a task immediately.
func (a *App) ForceRenewTask(ctx context.Context, taskID string) (model.TaskState, error) {
	username, err := a.svc.Sessions.Require(ctx)
	if err != nil {
		return model.TaskState{}, err
	}
	return a.svc.Tasks.ForceRenew(ctx, username, taskID)
}

// EraseAllData wipes the whole namespace, sessions included.
func (a *App) EraseAllData(ctx context.Context) error {
	a.teardown()
	if err := a.store.Clear(ctx); err != nil {
		return err
	}
	log.Warn().Str("namespace", a.store.Namespace()).Msg("All data erased")
	return nil
}

