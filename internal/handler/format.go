package handler

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"clickearn/internal/dwell"
	"clickearn/internal/model"
	"clickearn/internal/pkg/kv"
	"clickearn/internal/pkg/lock"
	"clickearn/internal/service"
)

// Describe turns an error into a message for the user. Unknown errors are
// logged and reported generically.
func Describe(err error) string {
	switch {
	case errors.Is(err, service.ErrNoSession):
		return "❌ Please log in first"
	case errors.Is(err, service.ErrInvalidInput):
		return "❌ " + err.Error()
	case errors.Is(err, service.ErrDuplicateUsername):
		return "❌ That username is already taken"
	case errors.Is(err, service.ErrDuplicateEmail):
		return "❌ That email is already registered"
	case errors.Is(err, service.ErrUserNotFound):
		return "❌ No account with that username or email"
	case errors.Is(err, service.ErrWrongPassword):
		return "❌ Wrong password"
	case errors.Is(err, service.ErrTaskNotFound):
		return "❌ Unknown task"
	case errors.Is(err, service.ErrTaskLocked):
		return "⏳ Task is on cooldown"
	case errors.Is(err, service.ErrInvalidAdIndex):
		return "❌ No such ad slot"
	case errors.Is(err, service.ErrAlreadyClicked):
		return "ℹ️ Ad already viewed"
	case errors.Is(err, service.ErrInsufficientBalance):
		return "❌ Balance below the withdrawal threshold"
	case errors.Is(err, service.ErrInvalidTheme):
		return "❌ Theme must be dark or light"
	case errors.Is(err, service.ErrStorePartialFailure):
		return "⚠️ Storage failed half way, some data may be out of sync"
	case errors.Is(err, lock.ErrLockTimeout):
		return "⏳ Account busy, try again"
	case errors.Is(err, kv.ErrStoreUnavailable):
		return "❌ Storage is unavailable, try again later"
	}
	log.Error().Err(err).Msg("Unhandled command error")
	return "❌ Something went wrong, try again later"
}

// FormatDwellEvent renders the outcome of a dwell check.
func FormatDwellEvent(ev dwell.Event) string {
	slot := fmt.Sprintf("%s ad %d", ev.Key.TaskID, ev.Key.AdIndex+1)
	switch {
	case !ev.Committed:
		return fmt.Sprintf("⏱ %s closed after %s, not counted", slot, formatDuration(ev.Elapsed))
	case ev.Err != nil:
		return fmt.Sprintf("%s: %s", slot, Describe(ev.Err))
	case ev.Result.Completed:
		return fmt.Sprintf("🎉 %s completed! +%s, balance %s",
			ev.Key.TaskID, money(ev.Result.Reward), money(ev.Result.Balance))
	default:
		return fmt.Sprintf("✅ %s counted (%d/%d)",
			slot, ev.Result.State.ClickCount(), len(ev.Result.State.Clicks))
	}
}

// FormatTask renders one task line.
func FormatTask(v service.TaskView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-8s %-24s +%s  ", v.Entry.ID, v.Entry.Title, money(v.Entry.Reward))
	for _, clicked := range v.State.Clicks {
		if clicked {
			b.WriteString("■")
		} else {
			b.WriteString("□")
		}
	}
	b.WriteString("  ")
	b.WriteString(formatStatus(v))
	return b.String()
}

func formatStatus(v service.TaskView) string {
	switch v.Status {
	case model.StatusLocked:
		return "locked, renews in " + formatDuration(v.Remaining)
	case model.StatusRenewable:
		return "renewable"
	case model.StatusInProgress:
		return "in progress"
	default:
		return "available"
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// formatDuration renders whole seconds as 1h02m03s, 2m05s or 4s.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < 0 {
		d = 0
	}
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	switch {
	case h > 0:
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm%02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// DwellNotifier prints dwell outcomes to out as they happen.
func DwellNotifier(out io.Writer) func(dwell.Event) {
	return func(ev dwell.Event) {
		_, _ = io.WriteString(out, FormatDwellEvent(ev)+"\n")
	}
}
