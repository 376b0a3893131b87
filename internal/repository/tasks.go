package repository

import (
	"context"
	"fmt"

	"clickearn/internal/model"
	"clickearn/internal/pkg/kv"
)

// TaskStateRepository handles the per-user task progress map.
type TaskStateRepository struct {
	store *kv.Store
}

// NewTaskStateRepository creates a new TaskStateRepository instance.
func NewTaskStateRepository(store *kv.Store) *TaskStateRepository {
	return &TaskStateRepository{store: store}
}

// Key returns the store key of username's task states.
func (r *TaskStateRepository) Key(username string) string {
	return r.store.Key("tasks", username)
}

// Get returns every stored task state of username. Tasks never touched are
// absent from the map.
func (r *TaskStateRepository) Get(ctx context.Context, username string) (model.TaskStates, error) {
	states, err := kv.GetOr(ctx, r.store, r.Key(username), model.TaskStates{})
	if err != nil {
		return nil, fmt.Errorf("failed to load task states: %w", err)
	}
	if states == nil {
		states = model.TaskStates{}
	}
	return states, nil
}

// Save replaces username's task states.
func (r *TaskStateRepository) Save(ctx context.Context, username string, states model.TaskStates) error {
	if err := r.store.Set(ctx, r.Key(username), states); err != nil {
		return fmt.Errorf("failed to save task states: %w", err)
	}
	return nil
}

// Put writes a single task's state, keeping the others.
func (r *TaskStateRepository) Put(ctx context.Context, username, taskID string, state model.TaskState) error {
	states, err := r.Get(ctx, username)
	if err != nil {
		return err
	}
	states[taskID] = state
	return r.Save(ctx, username, states)
}

// Delete removes username's task states.
func (r *TaskStateRepository) Delete(ctx context.Context, username string) error {
	return r.store.Remove(ctx, r.Key(username))
}
