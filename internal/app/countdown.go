package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"clickearn/internal/service"
)

// countdown re-reads the task views on every tick until stopped.
type countdown struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// StartCountdown calls render with fresh task views once per tick for the
// logged-in user. Starting again replaces the running countdown; logout and
// the other teardown paths stop it. render must not call StopCountdown.
func (a *App) StartCountdown(ctx context.Context, render func([]service.TaskView)) error {
	username, err := a.svc.Sessions.Require(ctx)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithCancel(a.ctx)
	c := &countdown{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(c.done)

		ticker := time.NewTicker(a.tick)
		defer ticker.Stop()

		for {
			select {
			case <-cctx.Done():
				return
			case <-ticker.C:
				views, err := a.svc.Tasks.AllStates(cctx, username)
				if err != nil {
					log.Warn().Err(err).Str("username", username).Msg("Countdown refresh failed")
					continue
				}
				if cctx.Err() != nil {
					return
				}
				render(views)
			}
		}
	}()

	// Whoever swaps a countdown out stops it.
	a.mu.Lock()
	prev := a.countdown
	a.countdown = c
	a.mu.Unlock()
	prev.stop()

	log.Debug().Str("username", username).Dur("interval", a.tick).Msg("Countdown started")
	return nil
}

// StopCountdown stops the running countdown and waits for it to exit.
// Stopping when nothing runs is a no-op.
func (a *App) StopCountdown() {
	a.mu.Lock()
	c := a.countdown
	a.countdown = nil
	a.mu.Unlock()
	c.stop()
}

// stop cancels c and waits for its goroutine. A nil countdown is ignored.
func (c *countdown) stop() {
	if c == nil {
		return
	}
	c.cancel()
	<-c.done
}

// CountdownRunning reports whether a countdown is active.
func (a *App) CountdownRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.countdown != nil
}
