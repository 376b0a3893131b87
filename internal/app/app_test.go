package app

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clickearn/internal/config"
	"clickearn/internal/dwell"
	"clickearn/internal/model"
	"clickearn/internal/pkg/kv"
	"clickearn/internal/service"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type stubTimer struct {
	f       func()
	stopped atomic.Bool
}

func (t *stubTimer) Stop() bool { return !t.stopped.Swap(true) }

type harness struct {
	app    *App
	mem    *kv.MemoryBackend
	clock  *testClock
	mu     sync.Mutex
	timers []*stubTimer
	events chan dwell.Event
}

func testConfig() *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{Driver: config.DriverMemory, Namespace: "clickearn"},
		Rewards: config.RewardsConfig{Cooldown: 24 * time.Hour, WithdrawThreshold: "110"},
		Dwell:   config.DwellConfig{Min: 2 * time.Second, Margin: 500 * time.Millisecond},
		Ads:     config.AdsConfig{URL: "https://example.com/ad"},
	}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		mem:    kv.NewMemoryBackend(),
		clock:  &testClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)},
		events: make(chan dwell.Event, 32),
	}
	a, err := New(&Dependencies{
		Config:  testConfig(),
		Store:   kv.NewStore(h.mem, "clickearn"),
		OnDwell: func(ev dwell.Event) { h.events <- ev },
		Now:     h.clock.Now,
		AfterFunc: func(d time.Duration, f func()) dwell.Timer {
			h.mu.Lock()
			defer h.mu.Unlock()
			tm := &stubTimer{f: f}
			h.timers = append(h.timers, tm)
			return tm
		},
		TickInterval: 5 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(a.Close)
	h.app = a
	return h
}

// view clicks a slot and lets the full dwell pass before focus returns.
func (h *harness) view(t *testing.T, taskID string, idx int) dwell.Event {
	t.Helper()
	ctx := context.Background()
	_, err := h.app.ClickAdSlot(ctx, taskID, idx)
	require.NoError(t, err)
	h.clock.Advance(2 * time.Second)
	events := h.app.FocusReturned(ctx)
	require.Len(t, events, 1)
	<-h.events
	return events[0]
}

func (h *harness) completeTask(t *testing.T, taskID string) {
	t.Helper()
	for i := 0; i < 3; i++ {
		ev := h.view(t, taskID, i)
		require.NoError(t, ev.Err)
	}
}

func TestApp_CommandsRequireSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.app.GetBalance(ctx)
	assert.ErrorIs(t, err, service.ErrNoSession)
	_, err = h.app.GetAllTaskStates(ctx)
	assert.ErrorIs(t, err, service.ErrNoSession)
	_, err = h.app.ClickAdSlot(ctx, "task1", 0)
	assert.ErrorIs(t, err, service.ErrNoSession)
	_, err = h.app.RequestWithdrawal(ctx)
	assert.ErrorIs(t, err, service.ErrNoSession)
	assert.ErrorIs(t, h.app.StartCountdown(ctx, func([]service.TaskView) {}), service.ErrNoSession)
	assert.ErrorIs(t, h.app.DeleteAccount(ctx), service.ErrNoSession)

	// Theme works for guests.
	theme, err := h.app.GetThemePreference(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.ThemeDark, theme)
}

func TestApp_EndToEnd(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.app.Register(ctx, "alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	h.completeTask(t, "task1")
	balance, err := h.app.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.62", balance.StringFixed(2))

	h.completeTask(t, "task2")
	h.completeTask(t, "task3")
	balance, err = h.app.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "4.86", balance.StringFixed(2))

	_, err = h.app.ForceRenewTask(ctx, "task1")
	require.NoError(t, err)
	h.completeTask(t, "task1")

	rec, err := h.app.Wallet(ctx)
	require.NoError(t, err)
	assert.Equal(t, "6.48", rec.Balance.StringFixed(2))
	assert.Len(t, rec.Transactions, 4)

	views, err := h.app.GetAllTaskStates(ctx)
	require.NoError(t, err)
	for _, v := range views {
		assert.Equal(t, model.StatusLocked, v.Status, v.Entry.ID)
	}
}

func TestApp_ClickAdSlotPrechecks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.app.Register(ctx, "alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	url, err := h.app.ClickAdSlot(ctx, "task1", 0)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/ad", url)

	_, err = h.app.ClickAdSlot(ctx, "task1", 3)
	assert.ErrorIs(t, err, service.ErrInvalidAdIndex)
	_, err = h.app.ClickAdSlot(ctx, "nope", 0)
	assert.ErrorIs(t, err, service.ErrTaskNotFound)

	h.clock.Advance(2 * time.Second)
	h.app.FocusReturned(ctx)

	_, err = h.app.ClickAdSlot(ctx, "task1", 0)
	assert.ErrorIs(t, err, service.ErrAlreadyClicked)
	assert.True(t, service.IsSoft(err))

	h.view(t, "task1", 1)
	h.view(t, "task1", 2)

	_, err = h.app.ClickAdSlot(ctx, "task1", 0)
	assert.ErrorIs(t, err, service.ErrTaskLocked)
}

// A task left with every slot clicked but no reward finishes on the next
// click instead of reporting the slot as already viewed.
func TestApp_ClickFinishesInterruptedCompletion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.app.Register(ctx, "alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	require.NoError(t, h.mem.Set(ctx, "clickearn_tasks_alice",
		[]byte(`{"task1":{"clicks":[true,true,true],"completed":false,"nextAvailable":0}}`)))

	url, err := h.app.ClickAdSlot(ctx, "task1", 0)
	require.NoError(t, err)
	assert.Empty(t, url)
	assert.Empty(t, h.app.PendingDwells())

	ev := <-h.events
	assert.Equal(t, dwell.TriggerResume, ev.Trigger)
	assert.True(t, ev.Committed)
	require.NoError(t, ev.Err)
	assert.True(t, ev.Result.Completed)

	balance, err := h.app.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.62", balance.StringFixed(2))

	view, err := h.app.GetTaskState(ctx, "task1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusLocked, view.Status)

	_, err = h.app.ClickAdSlot(ctx, "task1", 1)
	assert.ErrorIs(t, err, service.ErrTaskLocked)
}

func TestApp_EarlyFocusDoesNotCredit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.app.Register(ctx, "alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	_, err = h.app.ClickAdSlot(ctx, "task1", 0)
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	assert.Empty(t, h.app.FocusReturned(ctx))

	view, err := h.app.GetTaskState(ctx, "task1")
	require.NoError(t, err)
	assert.Equal(t, 0, view.State.ClickCount())
	assert.Len(t, h.app.PendingDwells(), 1)
}

func TestApp_LogoutTearsDown(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.app.Register(ctx, "alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	_, err = h.app.ClickAdSlot(ctx, "task1", 0)
	require.NoError(t, err)
	require.NoError(t, h.app.StartCountdown(ctx, func([]service.TaskView) {}))
	require.True(t, h.app.CountdownRunning())

	require.NoError(t, h.app.Logout(ctx))

	assert.False(t, h.app.CountdownRunning())
	assert.Empty(t, h.app.PendingDwells())
	h.mu.Lock()
	assert.True(t, h.timers[0].stopped.Load())
	h.mu.Unlock()

	_, ok, err := h.app.CurrentUser(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestApp_CountdownTicksAndStops(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.app.Register(ctx, "alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	var ticks atomic.Int32
	require.NoError(t, h.app.StartCountdown(ctx, func(views []service.TaskView) {
		if len(views) == 3 {
			ticks.Add(1)
		}
	}))
	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, time.Millisecond)

	h.app.StopCountdown()
	after := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, ticks.Load(), "no ticks after stop")

	// Stopping twice is harmless.
	h.app.StopCountdown()
}

// Racing starts leave exactly one countdown, and stopping it silences all
// of them.
func TestApp_ConcurrentCountdownStarts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.app.Register(ctx, "alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	var ticks atomic.Int32
	render := func([]service.TaskView) { ticks.Add(1) }

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.app.StartCountdown(ctx, render))
		}()
	}
	wg.Wait()
	require.True(t, h.app.CountdownRunning())
	require.Eventually(t, func() bool { return ticks.Load() >= 2 }, time.Second, time.Millisecond)

	h.app.StopCountdown()
	assert.False(t, h.app.CountdownRunning())

	after := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, ticks.Load(), "a countdown survived the stop")
}

func TestApp_RequestWithdrawalUsesWholeBalance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.app.Register(ctx, "alice", "alice@example.com", "secret1")
	require.NoError(t, err)

	_, err = h.app.RequestWithdrawal(ctx)
	assert.ErrorIs(t, err, service.ErrInsufficientBalance)

	require.NoError(t, h.mem.Set(ctx, "clickearn_user_alice",
		[]byte(`{"balance":"112.5","transactions":[],"withdrawRequests":[]}`)))

	req, err := h.app.RequestWithdrawal(ctx)
	require.NoError(t, err)
	assert.Equal(t, "112.50", req.Amount.StringFixed(2))

	balance, err := h.app.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "112.50", balance.StringFixed(2))
}

func TestApp_Theme(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.app.SetThemePreference(ctx, model.ThemeLight))
	theme, err := h.app.GetThemePreference(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.ThemeLight, theme)

	assert.ErrorIs(t, h.app.SetThemePreference(ctx, "purple"), service.ErrInvalidTheme)
}

func TestApp_ProfileAndDeletion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.app.Register(ctx, "alice", "alice@example.com", "secret1")
	require.NoError(t, err)
	h.completeTask(t, "task1")

	acc, err := h.app.UpdateProfile(ctx, "alicia", "alicia@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alicia", acc.Username)

	me, err := h.app.Account(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alicia@example.com", me.Email)

	balance, err := h.app.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.62", balance.StringFixed(2))

	require.NoError(t, h.app.DeleteAccount(ctx))
	_, err = h.app.Login(ctx, "alicia", "secret1")
	assert.ErrorIs(t, err, service.ErrUserNotFound)
}

func TestApp_EraseAllData(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.app.Register(ctx, "alice", "alice@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, h.app.SetThemePreference(ctx, model.ThemeLight))
	require.NoError(t, h.mem.Set(ctx, "other_key", []byte("1")))

	require.NoError(t, h.app.EraseAllData(ctx))

	assert.Equal(t, []string{"other_key"}, h.mem.Keys())
	_, ok, err := h.app.CurrentUser(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Rewards.WithdrawThreshold = "lots"
	_, err := New(&Dependencies{Config: cfg, Store: kv.NewStore(kv.NewMemoryBackend(), "x")})
	assert.Error(t, err)

	_, err = New(&Dependencies{Config: testConfig()})
	assert.Error(t, err)
}
