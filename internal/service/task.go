package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"clickearn/internal/catalog"
	"clickearn/internal/model"
	"clickearn/internal/pkg/lock"
	"clickearn/internal/repository"
)

// Completer finishes a task whose every slot has been clicked. It runs with
// the user's lock held.
type Completer interface {
	CompleteTask(ctx context.Context, username string, entry catalog.Entry, state model.TaskState) (model.TaskState, decimal.Decimal, error)
}

// TaskView is a task with the user's progress at one instant.
type TaskView struct {
	Entry     catalog.Entry
	State     model.TaskState
	Status    model.TaskStatus
	Remaining time.Duration
}

// ClickResult reports the effect of RecordClick.
type ClickResult struct {
	TaskID    string
	AdIndex   int
	State     model.TaskState
	Completed bool
	Reward    decimal.Decimal
	Balance   decimal.Decimal
}

// TaskService is the per-user task state machine:
// fresh -> in progress -> locked -> renewable -> fresh.
type TaskService struct {
	tasks     *repository.TaskStateRepository
	catalog   *catalog.Catalog
	completer Completer
	locks     *lock.UserLock
	lockWait  time.Duration
	now       func() time.Time
}

// NewTaskService creates a new TaskService instance.
func NewTaskService(
	tasks *repository.TaskStateRepository,
	cat *catalog.Catalog,
	completer Completer,
	locks *lock.UserLock,
	lockWait time.Duration,
	now func() time.Time,
) *TaskService {
	if now == nil {
		now = time.Now
	}
	return &TaskService{
		tasks:     tasks,
		catalog:   cat,
		completer: completer,
		locks:     locks,
		lockWait:  lockWait,
		now:       now,
	}
}

// Catalog returns the task catalogue.
func (s *TaskService) Catalog() *catalog.Catalog {
	return s.catalog
}

// ReadState returns the task's state, persisting a renewal reset first if
// the cooldown has ended.
func (s *TaskService) ReadState(ctx context.Context, username, taskID string) (model.TaskState, error) {
	entry, ok := s.catalog.Get(taskID)
	if !ok {
		return model.TaskState{}, ErrTaskNotFound
	}

	s.locks.Lock(username)
	defer s.locks.Unlock(username)

	states, err := s.tasks.Get(ctx, username)
	if err != nil {
		return model.TaskState{}, err
	}
	state, changed := s.settle(username, entry, states[taskID])
	if changed {
		states[taskID] = state
		if err := s.tasks.Save(ctx, username, states); err != nil {
			return model.TaskState{}, err
		}
	}
	return state, nil
}

// AllStates returns every catalogue task in catalogue order.
func (s *TaskService) AllStates(ctx context.Context, username string) ([]TaskView, error) {
	s.locks.Lock(username)
	defer s.locks.Unlock(username)

	states, err := s.tasks.Get(ctx, username)
	if err != nil {
		return nil, err
	}

	now := s.now()
	dirty := false
	views := make([]TaskView, 0, s.catalog.Len())
	for _, entry := range s.catalog.All() {
		state, changed := s.settle(username, entry, states[entry.ID])
		if changed {
			states[entry.ID] = state
			dirty = true
		}
		views = append(views, TaskView{
			Entry:     entry,
			State:     state,
			Status:    state.Status(now),
			Remaining: state.Remaining(now),
		})
	}

	if dirty {
		if err := s.tasks.Save(ctx, username, states); err != nil {
			return nil, err
		}
	}
	return views, nil
}

// RecordClick credits one ad slot. The click that fills the last slot
// completes the task and credits the reward before the lock is released.
// ErrAlreadyClicked comes back with a valid result and no state change.
// Clicks are committed from timer goroutines, so the account lock is waited
// for at most lockWait and never past ctx.
func (s *TaskService) RecordClick(ctx context.Context, username, taskID string, adIndex int) (ClickResult, error) {
	entry, ok := s.catalog.Get(taskID)
	if !ok {
		return ClickResult{}, ErrTaskNotFound
	}
	if adIndex < 0 || adIndex >= entry.AdsRequired {
		return ClickResult{}, ErrInvalidAdIndex
	}

	if err := s.locks.LockContext(ctx, username, s.lockWait); err != nil {
		log.Warn().Err(err).Str("username", username).Str("task_id", taskID).Msg("Click dropped: account busy")
		return ClickResult{}, fmt.Errorf("failed to lock %s: %w", username, err)
	}
	defer s.locks.Unlock(username)

	states, err := s.tasks.Get(ctx, username)
	if err != nil {
		return ClickResult{}, err
	}
	state, changed := s.settle(username, entry, states[taskID])
	if changed {
		states[taskID] = state
		if err := s.tasks.Save(ctx, username, states); err != nil {
			return ClickResult{}, err
		}
	}

	result := ClickResult{TaskID: taskID, AdIndex: adIndex, State: state}

	switch {
	case state.Completed:
		return result, ErrTaskLocked
	case state.Clicks[adIndex] && !state.AllClicked():
		return result, ErrAlreadyClicked
	case state.Clicks[adIndex]:
		// Every slot is clicked but the task never completed: an earlier
		// completion was interrupted, so finish it now.
		log.Warn().Str("username", username).Str("task_id", taskID).Msg("Resuming interrupted completion")
	default:
		state.Clicks = append([]bool(nil), state.Clicks...)
		state.Clicks[adIndex] = true
		states[taskID] = state
		if err := s.tasks.Save(ctx, username, states); err != nil {
			return ClickResult{}, err
		}
		result.State = state

		log.Debug().
			Str("username", username).
			Str("task_id", taskID).
			Int("ad_index", adIndex).
			Int("clicks", state.ClickCount()).
			Msg("Ad click recorded")
	}

	if !state.AllClicked() {
		return result, nil
	}

	done, balance, err := s.completer.CompleteTask(ctx, username, entry, state)
	result.State = done
	if err != nil {
		return result, err
	}
	result.Completed = true
	result.Reward = entry.Reward
	result.Balance = balance
	return result, nil
}

// ForceRenew resets the task to fresh, clearing progress and cooldown.
func (s *TaskService) ForceRenew(ctx context.Context, username, taskID string) (model.TaskState, error) {
	entry, ok := s.catalog.Get(taskID)
	if !ok {
		return model.TaskState{}, ErrTaskNotFound
	}

	s.locks.Lock(username)
	defer s.locks.Unlock(username)

	fresh := model.FreshTaskState(entry.AdsRequired)
	if err := s.tasks.Put(ctx, username, taskID, fresh); err != nil {
		return model.TaskState{}, err
	}

	log.Info().Str("username", username).Str("task_id", taskID).Msg("Task force-renewed")
	return fresh, nil
}

// settle brings a stored state in line with the catalogue entry and the
// clock: missing states become fresh, click slices are resized, a completed
// task always has every slot clicked, and an expired cooldown renews the task.
// changed reports whether the result differs from what is stored.
func (s *TaskService) settle(username string, entry catalog.Entry, stored model.TaskState) (state model.TaskState, changed bool) {
	state = stored

	if len(state.Clicks) != entry.AdsRequired {
		clicks := make([]bool, entry.AdsRequired)
		copy(clicks, state.Clicks)
		state.Clicks = clicks
		changed = true
	}

	if state.Completed && !state.AllClicked() {
		state.Clicks = make([]bool, entry.AdsRequired)
		for i := range state.Clicks {
			state.Clicks[i] = true
		}
		changed = true
	}

	if state.Completed && s.now().UnixMilli() >= state.NextAvailable {
		state = model.FreshTaskState(entry.AdsRequired)
		changed = true
		log.Debug().Str("username", username).Str("task_id", entry.ID).Msg("Task renewed after cooldown")
	}

	return state, changed
}

// IsSoft reports whether err is an outcome the user should not see as a
// failure.
func IsSoft(err error) bool {
	return errors.Is(err, ErrAlreadyClicked)
}
