package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"clickearn/internal/catalog"
	"clickearn/internal/pkg/kv"
	"clickearn/internal/repository"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// faultyBackend fails writes to keys matched by failSet.
type faultyBackend struct {
	*kv.MemoryBackend
	mu      sync.Mutex
	failSet func(key string) bool
}

var errInjected = errors.New("injected write failure")

func (f *faultyBackend) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	fail := f.failSet != nil && f.failSet(key)
	f.mu.Unlock()
	if fail {
		return errInjected
	}
	return f.MemoryBackend.Set(ctx, key, value)
}

func (f *faultyBackend) failWritesWithPrefix(prefix string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSet = func(key string) bool { return strings.HasPrefix(key, prefix) }
}

func (f *faultyBackend) heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSet = nil
}

type testEnv struct {
	backend *faultyBackend
	repos   *repository.Repositories
	svc     *Services
	clock   *fakeClock
}

const testCooldown = 24 * time.Hour

var (
	reward    = decimal.RequireFromString("1.62")
	threshold = decimal.NewFromInt(110)
)

func newTestEnv() *testEnv {
	backend := &faultyBackend{MemoryBackend: kv.NewMemoryBackend()}
	repos := repository.New(kv.NewStore(backend, "clickearn"))
	clock := newFakeClock()
	svc := NewServices(repos, Options{
		Catalog:           catalog.Default(),
		Cooldown:          testCooldown,
		WithdrawThreshold: threshold,
		Now:               clock.Now,
	})
	return &testEnv{backend: backend, repos: repos, svc: svc, clock: clock}
}

// register creates and logs in a user, panicking on failure.
func (e *testEnv) register(username string) {
	if _, err := e.svc.Accounts.Register(context.Background(), username, username+"@example.com", "secret1"); err != nil {
		panic(err)
	}
}

// completeTask clicks every slot of taskID.
func (e *testEnv) completeTask(username, taskID string) (ClickResult, error) {
	entry, _ := e.svc.Tasks.Catalog().Get(taskID)
	var (
		res ClickResult
		err error
	)
	for i := 0; i < entry.AdsRequired; i++ {
		res, err = e.svc.Tasks.RecordClick(context.Background(), username, taskID, i)
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

func decimalFromInt(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}
