// Package model defines the persisted records of the clickearn engine.
// Every record is stored as JSON under a namespaced key, so field tags are
// part of the on-disk schema.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a registered user. Username is the primary key and is
// compared case-sensitively.
type Account struct {
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Session is the single authenticated identity of a storage scope.
type Session struct {
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Transaction is an immutable balance credit.
type Transaction struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Type        string          `json:"type"`
	TaskID      string          `json:"taskId,omitempty"`
	Description string          `json:"description"`
	Timestamp   time.Time       `json:"timestamp"`
}

// WithdrawRequest records the intent to cash out. Nothing advances its
// status past pending.
type WithdrawRequest struct {
	ID        string          `json:"id"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	Timestamp time.Time       `json:"timestamp"`
}

// WalletRecord is the per-user ledger. Transactions and WithdrawRequests are
// append-only and chronological.
type WalletRecord struct {
	Balance          decimal.Decimal   `json:"balance"`
	Transactions     []Transaction     `json:"transactions"`
	WithdrawRequests []WithdrawRequest `json:"withdrawRequests"`
}

// NewWalletRecord returns an empty ledger with non-nil slices so that it
// serialises as [] rather than null.
func NewWalletRecord() WalletRecord {
	return WalletRecord{
		Balance:          decimal.Zero,
		Transactions:     []Transaction{},
		WithdrawRequests: []WithdrawRequest{},
	}
}

// TaskState is the progress of one user on one catalogue task.
// NextAvailable is a Unix millisecond timestamp; 0 means available now.
type TaskState struct {
	Clicks        []bool `json:"clicks"`
	Completed     bool   `json:"completed"`
	NextAvailable int64  `json:"nextAvailable"`
}

// TaskStates maps task IDs to their state for a single user.
type TaskStates map[string]TaskState

// FreshTaskState returns the default state of a task requiring n ad views.
func FreshTaskState(n int) TaskState {
	return TaskState{Clicks: make([]bool, n)}
}

// ClickCount returns how many ad slots have been credited.
func (s TaskState) ClickCount() int {
	n := 0
	for _, c := range s.Clicks {
		if c {
			n++
		}
	}
	return n
}

// AllClicked reports whether every slot has been credited.
func (s TaskState) AllClicked() bool {
	for _, c := range s.Clicks {
		if !c {
			return false
		}
	}
	return len(s.Clicks) > 0
}

// NextAvailableTime converts NextAvailable to a time.Time.
func (s TaskState) NextAvailableTime() time.Time {
	return time.UnixMilli(s.NextAvailable)
}

// Status derives the lifecycle state at the given instant.
func (s TaskState) Status(now time.Time) TaskStatus {
	switch {
	case s.Completed && now.UnixMilli() < s.NextAvailable:
		return StatusLocked
	case s.Completed:
		return StatusRenewable
	case s.ClickCount() == 0:
		return StatusFresh
	default:
		return StatusInProgress
	}
}

// Remaining returns the cooldown left at now, or 0 when not locked.
func (s TaskState) Remaining(now time.Time) time.Duration {
	if s.Status(now) != StatusLocked {
		return 0
	}
	return s.NextAvailableTime().Sub(now)
}

// TaskStatus is the lifecycle position of a task for a user.
type TaskStatus string

// Task lifecycle states.
const (
	StatusFresh      TaskStatus = "fresh"
	StatusInProgress TaskStatus = "in_progress"
	StatusLocked     TaskStatus = "locked"
	StatusRenewable  TaskStatus = "renewable"
)

// Transaction types.
const (
	TxTypeTaskReward = "task_reward"
)

// Withdrawal request statuses.
const (
	WithdrawStatusPending = "pending"
)

// Theme preferences.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)
