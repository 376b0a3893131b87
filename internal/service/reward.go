package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"clickearn/internal/catalog"
	"clickearn/internal/model"
	"clickearn/internal/repository"
)

// RewardService turns a fully clicked task into a completed, credited one.
// The caller must hold the user's lock.
type RewardService struct {
	tasks    *repository.TaskStateRepository
	wallet   *WalletService
	cooldown time.Duration
	now      func() time.Time
}

// NewRewardService creates a new RewardService instance.
func NewRewardService(
	tasks *repository.TaskStateRepository,
	wallet *WalletService,
	cooldown time.Duration,
	now func() time.Time,
) *RewardService {
	if now == nil {
		now = time.Now
	}
	return &RewardService{tasks: tasks, wallet: wallet, cooldown: cooldown, now: now}
}

// Cooldown returns how long a completed task stays locked.
func (s *RewardService) Cooldown() time.Duration {
	return s.cooldown
}

// CompleteTask marks the task completed with its cooldown and then credits
// the reward. The state is written first: a failure in between leaves a
// completed task without credit, never a credit that can be claimed again.
func (s *RewardService) CompleteTask(ctx context.Context, username string, entry catalog.Entry, state model.TaskState) (model.TaskState, decimal.Decimal, error) {
	completedAt := s.now()

	done := model.TaskState{
		Clicks:        make([]bool, entry.AdsRequired),
		Completed:     true,
		NextAvailable: completedAt.Add(s.cooldown).UnixMilli(),
	}
	for i := range done.Clicks {
		done.Clicks[i] = true
	}

	if err := s.tasks.Put(ctx, username, entry.ID, done); err != nil {
		return state, decimal.Zero, fmt.Errorf("failed to complete task %s: %w", entry.ID, err)
	}

	balance, err := s.wallet.Credit(ctx, username, entry.Reward, CreditMeta{
		Type:        model.TxTypeTaskReward,
		TaskID:      entry.ID,
		Description: "Completed " + entry.ID,
	})
	if err != nil {
		log.Error().
			Err(err).
			Str("username", username).
			Str("task_id", entry.ID).
			Msg("Task completed but reward not credited")
		return done, decimal.Zero, fmt.Errorf("%w: credit %s: %w", ErrStorePartialFailure, entry.ID, err)
	}

	log.Info().
		Str("username", username).
		Str("task_id", entry.ID).
		Time("next_available", done.NextAvailableTime()).
		Msg("Task completed")

	return done, balance, nil
}
