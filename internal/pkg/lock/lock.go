// Package lock serialises read-modify-write cycles on a single account's
// records. The click, completion and reward steps of a task all run under
// the account's lock so no reader observes a completed task whose reward
// has not been credited yet.
package lock

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	mu      sync.Mutex
	holders int
}

// UserLock hands out one mutex per username.
type UserLock struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// NewUserLock creates an empty UserLock.
func NewUserLock() *UserLock {
	return &UserLock{entries: make(map[string]*entry)}
}

// acquire returns the entry for username with its reference taken.
func (ul *UserLock) acquire(username string) *entry {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	e, ok := ul.entries[username]
	if !ok {
		e = &entry{}
		ul.entries[username] = e
	}
	e.holders++
	return e
}

// release drops a reference and forgets entries nobody waits on.
func (ul *UserLock) release(username string, e *entry) {
	ul.mu.Lock()
	defer ul.mu.Unlock()

	e.holders--
	if e.holders == 0 {
		delete(ul.entries, username)
	}
}

// Lock blocks until username's lock is held.
func (ul *UserLock) Lock(username string) {
	ul.acquire(username).mu.Lock()
}

// Unlock releases username's lock. Names with no live entry are ignored.
func (ul *UserLock) Unlock(username string) {
	ul.mu.Lock()
	e, ok := ul.entries[username]
	ul.mu.Unlock()
	if !ok {
		return
	}
	e.mu.Unlock()
	ul.release(username, e)
}

// LockContext waits for the lock until ctx is done or timeout elapses.
func (ul *UserLock) LockContext(ctx context.Context, username string, timeout time.Duration) error {
	e := ul.acquire(username)

	done := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(done)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-done:
		return nil
	case <-waitCtx.Done():
		go func() {
			<-done
			e.mu.Unlock()
			ul.release(username, e)
		}()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrLockTimeout
	}
}

// WithLock runs fn while holding username's lock.
func (ul *UserLock) WithLock(username string, fn func() error) error {
	ul.Lock(username)
	defer ul.Unlock(username)
	return fn()
}
