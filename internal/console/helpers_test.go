package console

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"clickearn/internal/app"
	"clickearn/internal/config"
	"clickearn/internal/dwell"
	"clickearn/internal/handler"
	"clickearn/internal/pkg/kv"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
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

type idleTimer struct{}

func (idleTimer) Stop() bool { return true }

// safeBuffer is a bytes.Buffer that can be read while handlers write.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *safeBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type testEnv struct {
	console *Console
	app     *app.App
	out     *safeBuffer
	clock   *fakeClock
}

// newTestEnv builds a console over an in-memory store. Dwell fallback timers
// never fire, so outcomes come only from 'back'.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	buf := &safeBuffer{}
	out := NewOutput(buf)
	clock := &fakeClock{now: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}

	a, err := app.New(&app.Dependencies{
		Config: &config.Config{
			Storage: config.StorageConfig{Driver: config.DriverMemory, Namespace: "clickearn"},
			Rewards: config.RewardsConfig{Cooldown: 24 * time.Hour, WithdrawThreshold: "110"},
			Dwell:   config.DwellConfig{Min: 2 * time.Second, Margin: 500 * time.Millisecond},
			Ads:     config.AdsConfig{URL: "https://example.com/ad"},
		},
		Store:     kv.NewStore(kv.NewMemoryBackend(), "clickearn"),
		OnDwell:   handler.DwellNotifier(out),
		Now:       clock.Now,
		AfterFunc: func(time.Duration, func()) dwell.Timer { return idleTimer{} },
	})
	require.NoError(t, err)
	t.Cleanup(a.Close)

	c, err := New(&Dependencies{App: a, Out: out})
	require.NoError(t, err)

	return &testEnv{console: c, app: a, out: buf, clock: clock}
}

// run executes lines and returns what they printed.
func (e *testEnv) run(t *testing.T, lines ...string) string {
	t.Helper()
	e.out.Reset()
	for _, line := range lines {
		require.NoError(t, e.console.Execute(context.Background(), line))
	}
	return e.out.String()
}
