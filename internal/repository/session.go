package repository

import (
	"context"
	"fmt"

	"clickearn/internal/model"
	"clickearn/internal/pkg/kv"
)

// SessionRepository persists the single active session.
type SessionRepository struct {
	store *kv.Store
}

// NewSessionRepository creates a new SessionRepository instance.
func NewSessionRepository(store *kv.Store) *SessionRepository {
	return &SessionRepository{store: store}
}

func (r *SessionRepository) key() string {
	return r.store.Key("session")
}

// Get returns the stored session. ok is false for a guest.
func (r *SessionRepository) Get(ctx context.Context) (sess model.Session, ok bool, err error) {
	sess, err = kv.GetOr(ctx, r.store, r.key(), model.Session{})
	if err != nil {
		return model.Session{}, false, fmt.Errorf("failed to load session: %w", err)
	}
	return sess, sess.Username != "", nil
}

// Save replaces the session.
func (r *SessionRepository) Save(ctx context.Context, sess model.Session) error {
	if err := r.store.Set(ctx, r.key(), sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Delete removes the session.
func (r *SessionRepository) Delete(ctx context.Context) error {
	return r.store.Remove(ctx, r.key())
}
