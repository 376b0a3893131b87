package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"clickearn/internal/model"
	"clickearn/internal/repository"
)

// SessionService tracks the authenticated identity of the storage scope.
// It only reports authorization outcomes; callers decide where to go next.
type SessionService struct {
	repo *repository.SessionRepository
}

// NewSessionService creates a new SessionService instance.
func NewSessionService(repo *repository.SessionRepository) *SessionService {
	return &SessionService{repo: repo}
}

// Current returns the logged-in username. ok is false for a guest.
func (s *SessionService) Current(ctx context.Context) (string, bool, error) {
	sess, ok, err := s.repo.Get(ctx)
	if err != nil {
		return "", false, err
	}
	return sess.Username, ok, nil
}

// Establish replaces any session with a new one for username.
func (s *SessionService) Establish(ctx context.Context, username string) (model.Session, error) {
	sess := model.Session{Username: username, Token: uuid.NewString()}
	if err := s.repo.Save(ctx, sess); err != nil {
		return model.Session{}, fmt.Errorf("failed to establish session: %w", err)
	}
	log.Debug().Str("username", username).Msg("Session established")
	return sess, nil
}

// Destroy removes the session, if any.
func (s *SessionService) Destroy(ctx context.Context) error {
	if err := s.repo.Delete(ctx); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// Require returns the logged-in username or ErrNoSession.
func (s *SessionService) Require(ctx context.Context) (string, error) {
	username, ok, err := s.Current(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoSession
	}
	return username, nil
}
