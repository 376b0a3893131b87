// Package dwell holds "ad opened, waiting for the minimum view time" entries
// in process memory and turns a verified view into a recorded click.
//
// An entry is checked when focus returns to the app and once more by a
// fallback timer at min+margin. A check that comes too early does nothing;
// the fallback check is final and drops the entry either way. Whichever check
// removes the entry first is the only one that commits.
package dwell

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"clickearn/internal/service"
)

// Recorder commits a verified view.
type Recorder interface {
	RecordClick(ctx context.Context, username, taskID string, adIndex int) (service.ClickResult, error)
}

// Timer is the handle returned by Options.AfterFunc.
type Timer interface {
	Stop() bool
}

// Trigger names what caused a check.
type Trigger string

// Check triggers.
const (
	TriggerFocus    Trigger = "focus"
	TriggerFallback Trigger = "fallback"
	// TriggerResume finishes a task whose slots were all verified but whose
	// completion never landed. No new dwell is needed.
	TriggerResume Trigger = "resume"
)

// Key identifies an ad slot.
type Key struct {
	TaskID  string
	AdIndex int
}

// Event reports the outcome of a check that removed an entry.
type Event struct {
	Key
	Username string
	Trigger  Trigger
	Elapsed  time.Duration
	// Committed is true when RecordClick ran; Result and Err hold its outcome.
	Committed bool
	Result    service.ClickResult
	Err       error
}

// Pending describes an entry still waiting for its check.
type Pending struct {
	Key
	Username string
	OpenedAt time.Time
	// Remaining is the dwell time still missing, 0 once it has elapsed.
	Remaining time.Duration
}

// Options configures a Verifier.
type Options struct {
	Min    time.Duration
	Margin time.Duration
	// URL is handed back by Begin as the destination to open.
	URL string
	// Notify receives every event, from whichever goroutine produced it.
	Notify func(Event)

	Now       func() time.Time
	AfterFunc func(d time.Duration, f func()) Timer
}

type entry struct {
	username string
	openedAt time.Time
	gen      uint64
	ctx      context.Context
	timer    Timer
	unhook   func() bool
}

// Verifier tracks pending dwell entries.
type Verifier struct {
	rec  Recorder
	opts Options

	mu      sync.Mutex
	gen     uint64
	pending map[Key]*entry
}

// New creates a Verifier that commits through rec.
func New(rec Recorder, opts Options) *Verifier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.AfterFunc == nil {
		opts.AfterFunc = func(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
	}
	return &Verifier{rec: rec, opts: opts, pending: make(map[Key]*entry)}
}

// MinDwell returns the configured minimum dwell.
func (v *Verifier) MinDwell() time.Duration {
	return v.opts.Min
}

// Begin records that username opened the ad slot and returns the URL to
// open. Beginning a slot that is already pending restarts it. The entry is
// dropped when ctx is cancelled, so ctx must outlive the wait.
func (v *Verifier) Begin(ctx context.Context, username, taskID string, adIndex int) string {
	key := Key{TaskID: taskID, AdIndex: adIndex}

	v.mu.Lock()
	defer v.mu.Unlock()

	if old, ok := v.pending[key]; ok {
		v.release(old)
	}

	v.gen++
	e := &entry{
		username: username,
		openedAt: v.opts.Now(),
		gen:      v.gen,
		ctx:      ctx,
	}
	gen := e.gen
	e.timer = v.opts.AfterFunc(v.opts.Min+v.opts.Margin, func() {
		v.check(key, gen, TriggerFallback)
	})
	e.unhook = context.AfterFunc(ctx, func() {
		v.drop(key, gen)
	})
	v.pending[key] = e

	log.Debug().
		Str("username", username).
		Str("task_id", taskID).
		Int("ad_index", adIndex).
		Msg("Dwell started")

	return v.opts.URL
}

// Resume commits the slot right away and notifies like any other check.
func (v *Verifier) Resume(ctx context.Context, username, taskID string, adIndex int) Event {
	key := Key{TaskID: taskID, AdIndex: adIndex}

	ev := Event{Key: key, Username: username, Trigger: TriggerResume, Committed: true}
	ev.Result, ev.Err = v.rec.RecordClick(ctx, username, taskID, adIndex)
	if ev.Err != nil && !service.IsSoft(ev.Err) {
		log.Warn().
			Err(ev.Err).
			Str("username", username).
			Str("task_id", taskID).
			Msg("Resumed completion failed")
	} else {
		log.Info().
			Str("username", username).
			Str("task_id", taskID).
			Bool("completed", ev.Result.Completed).
			Msg("Interrupted completion resumed")
	}

	if v.opts.Notify != nil {
		v.opts.Notify(ev)
	}
	return ev
}

// FocusReturned checks every pending entry and returns the events of the
// entries it removed.
func (v *Verifier) FocusReturned(ctx context.Context) []Event {
	if ctx.Err() != nil {
		return nil
	}

	v.mu.Lock()
	type ref struct {
		key Key
		gen uint64
	}
	refs := make([]ref, 0, len(v.pending))
	for k, e := range v.pending {
		refs = append(refs, ref{key: k, gen: e.gen})
	}
	v.mu.Unlock()

	sort.Slice(refs, func(i, j int) bool { return refs[i].gen < refs[j].gen })

	var events []Event
	for _, r := range refs {
		if ev, ok := v.check(r.key, r.gen, TriggerFocus); ok {
			events = append(events, ev)
		}
	}
	return events
}

// check runs one dwell check. ok is false when the check took no action.
func (v *Verifier) check(key Key, gen uint64, trigger Trigger) (Event, bool) {
	v.mu.Lock()
	e, found := v.pending[key]
	if !found || e.gen != gen {
		v.mu.Unlock()
		return Event{}, false
	}

	elapsed := v.opts.Now().Sub(e.openedAt)
	tooEarly := elapsed < v.opts.Min
	if tooEarly && trigger != TriggerFallback {
		v.mu.Unlock()
		return Event{}, false
	}

	delete(v.pending, key)
	v.release(e)
	v.mu.Unlock()

	ev := Event{Key: key, Username: e.username, Trigger: trigger, Elapsed: elapsed}
	if tooEarly {
		log.Debug().
			Str("username", e.username).
			Str("task_id", key.TaskID).
			Int("ad_index", key.AdIndex).
			Dur("elapsed", elapsed).
			Msg("Dwell too short, dropped")
	} else {
		ev.Committed = true
		ev.Result, ev.Err = v.rec.RecordClick(e.ctx, e.username, key.TaskID, key.AdIndex)
		if ev.Err != nil && !service.IsSoft(ev.Err) {
			log.Warn().
				Err(ev.Err).
				Str("username", e.username).
				Str("task_id", key.TaskID).
				Int("ad_index", key.AdIndex).
				Msg("Dwell commit failed")
		}
	}

	if v.opts.Notify != nil {
		v.opts.Notify(ev)
	}
	return ev, true
}

// drop forgets the entry without committing.
func (v *Verifier) drop(key Key, gen uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if e, ok := v.pending[key]; ok && e.gen == gen {
		delete(v.pending, key)
		e.timer.Stop()
	}
}

// release stops the entry's timer and context hook. Caller holds v.mu.
func (v *Verifier) release(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
	}
	if e.unhook != nil {
		e.unhook()
	}
}

// Pending lists the entries still waiting, oldest first.
func (v *Verifier) Pending() []Pending {
	v.mu.Lock()
	defer v.mu.Unlock()

	entries := make([]*entry, 0, len(v.pending))
	keys := make(map[*entry]Key, len(v.pending))
	for k, e := range v.pending {
		entries = append(entries, e)
		keys[e] = k
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].gen < entries[j].gen })

	now := v.opts.Now()
	out := make([]Pending, 0, len(entries))
	for _, e := range entries {
		remaining := v.opts.Min - now.Sub(e.openedAt)
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, Pending{Key: keys[e], Username: e.username, OpenedAt: e.openedAt, Remaining: remaining})
	}
	return out
}

// Reset forgets every pending entry and stops their timers.
func (v *Verifier) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	for k, e := range v.pending {
		v.release(e)
		delete(v.pending, k)
	}
}
