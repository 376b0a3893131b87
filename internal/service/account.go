// Package service implements the account, session, wallet, task and reward
// logic of the engine on top of the repositories.
package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/blake2b"

	"clickearn/internal/model"
	"clickearn/internal/pkg/lock"
	"clickearn/internal/repository"
)

// HashPassword is the demo-grade credential digest: unsalted and
// deterministic, so equal passwords give equal hashes.
func HashPassword(password string) string {
	sum := blake2b.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// AccountService handles the account directory.
type AccountService struct {
	repos    *repository.Repositories
	sessions *SessionService
	locks    *lock.UserLock
	now      func() time.Time
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(
	repos *repository.Repositories,
	sessions *SessionService,
	locks *lock.UserLock,
	now func() time.Time,
) *AccountService {
	if now == nil {
		now = time.Now
	}
	return &AccountService{
		repos:    repos,
		sessions: sessions,
		locks:    locks,
		now:      now,
	}
}

// Register creates an account with an empty wallet and task set, then logs
// the new user in.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (model.Session, error) {
	if err := validateStruct(RegisterRequest{Username: username, Email: email, Password: password}); err != nil {
		return model.Session{}, err
	}

	accounts, err := s.repos.Accounts.All(ctx)
	if err != nil {
		return model.Session{}, err
	}
	if _, taken := accounts[username]; taken {
		return model.Session{}, ErrDuplicateUsername
	}
	for _, acc := range accounts {
		if acc.Email == email {
			return model.Session{}, ErrDuplicateEmail
		}
	}

	acc := model.Account{
		Username:     username,
		Email:        email,
		PasswordHash: HashPassword(password),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repos.Accounts.Save(ctx, acc); err != nil {
		return model.Session{}, fmt.Errorf("failed to register: %w", err)
	}

	// From here on the account exists, so any failure leaves a partial user.
	if err := s.repos.Wallets.Save(ctx, username, model.NewWalletRecord()); err != nil {
		return model.Session{}, fmt.Errorf("%w: init wallet: %w", ErrStorePartialFailure, err)
	}
	if err := s.repos.Tasks.Save(ctx, username, model.TaskStates{}); err != nil {
		return model.Session{}, fmt.Errorf("%w: init tasks: %w", ErrStorePartialFailure, err)
	}
	sess, err := s.sessions.Establish(ctx, username)
	if err != nil {
		return model.Session{}, fmt.Errorf("%w: %w", ErrStorePartialFailure, err)
	}

	log.Info().Str("username", username).Msg("Account registered")
	return sess, nil
}

// Login authenticates by username first, then by email, and returns the
// account's username.
func (s *AccountService) Login(ctx context.Context, usernameOrEmail, password string) (string, error) {
	acc, err := s.repos.Accounts.Get(ctx, usernameOrEmail)
	if errors.Is(err, repository.ErrAccountNotFound) {
		acc, err = s.repos.Accounts.FindByEmail(ctx, usernameOrEmail)
	}
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to look up account: %w", err)
	}

	if acc.PasswordHash != HashPassword(password) {
		log.Debug().Str("username", acc.Username).Msg("Login rejected: wrong password")
		return "", ErrWrongPassword
	}

	if _, err := s.sessions.Establish(ctx, acc.Username); err != nil {
		return "", err
	}
	log.Info().Str("username", acc.Username).Msg("Logged in")
	return acc.Username, nil
}

// Logout ends the current session.
func (s *AccountService) Logout(ctx context.Context) error {
	return s.sessions.Destroy(ctx)
}

// Get returns username's account.
func (s *AccountService) Get(ctx context.Context, username string) (*model.Account, error) {
	acc, err := s.repos.Accounts.Get(ctx, username)
	if errors.Is(err, repository.ErrAccountNotFound) {
		return nil, ErrUserNotFound
	}
	return acc, err
}

// UpdateProfile changes username's login name and email. A rename moves the
// wallet and task records to the new name and follows the session.
func (s *AccountService) UpdateProfile(ctx context.Context, username, newUsername, newEmail string) (*model.Account, error) {
	if err := validateStruct(ProfileRequest{Username: newUsername, Email: newEmail}); err != nil {
		return nil, err
	}

	unlock := s.lockPair(username, newUsername)
	defer unlock()

	accounts, err := s.repos.Accounts.All(ctx)
	if err != nil {
		return nil, err
	}
	acc, ok := accounts[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	if newUsername != username {
		if _, taken := accounts[newUsername]; taken {
			return nil, ErrDuplicateUsername
		}
	}
	for name, other := range accounts {
		if name != username && other.Email == newEmail {
			return nil, ErrDuplicateEmail
		}
	}

	acc.Username = newUsername
	acc.Email = newEmail

	if newUsername == username {
		if err := s.repos.Accounts.Save(ctx, acc); err != nil {
			return nil, fmt.Errorf("failed to update profile: %w", err)
		}
		return &acc, nil
	}

	if err := s.moveRecords(ctx, username, newUsername); err != nil {
		return nil, err
	}
	if err := s.repos.Accounts.Rename(ctx, username, acc); err != nil {
		return nil, fmt.Errorf("%w: rename account: %w", ErrStorePartialFailure, err)
	}
	if err := s.dropRecords(ctx, username); err != nil {
		return nil, err
	}

	current, ok, err := s.sessions.Current(ctx)
	if err == nil && ok && current == username {
		_, err = s.sessions.Establish(ctx, newUsername)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: move session: %w", ErrStorePartialFailure, err)
	}

	log.Info().Str("username", username).Str("new_username", newUsername).Msg("Account renamed")
	return &acc, nil
}

// moveRecords copies the per-user records to a new name. Nothing has been
// removed yet if it fails, but copies may exist.
func (s *AccountService) moveRecords(ctx context.Context, from, to string) error {
	wallet, err := s.repos.Wallets.Get(ctx, from)
	if err != nil {
		return err
	}
	states, err := s.repos.Tasks.Get(ctx, from)
	if err != nil {
		return err
	}
	if err := s.repos.Wallets.Save(ctx, to, wallet); err != nil {
		return fmt.Errorf("%w: copy wallet: %w", ErrStorePartialFailure, err)
	}
	if err := s.repos.Tasks.Save(ctx, to, states); err != nil {
		return fmt.Errorf("%w: copy tasks: %w", ErrStorePartialFailure, err)
	}
	return nil
}

func (s *AccountService) dropRecords(ctx context.Context, username string) error {
	err := errors.Join(
		s.repos.Wallets.Delete(ctx, username),
		s.repos.Tasks.Delete(ctx, username),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorePartialFailure, err)
	}
	return nil
}

// Erase removes the account and every record it owns, and ends its session.
func (s *AccountService) Erase(ctx context.Context, username string) error {
	s.locks.Lock(username)
	defer s.locks.Unlock(username)

	exists, err := s.repos.Accounts.Exists(ctx, username)
	if err != nil {
		return err
	}
	if !exists {
		return ErrUserNotFound
	}

	var errs []error
	errs = append(errs, s.repos.Wallets.Delete(ctx, username))
	errs = append(errs, s.repos.Tasks.Delete(ctx, username))
	errs = append(errs, s.repos.Accounts.Delete(ctx, username))

	current, ok, err := s.sessions.Current(ctx)
	if err != nil {
		errs = append(errs, err)
	} else if ok && current == username {
		errs = append(errs, s.sessions.Destroy(ctx))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: erase %s: %w", ErrStorePartialFailure, username, err)
	}

	log.Info().Str("username", username).Msg("Account erased")
	return nil
}

// lockPair takes both user locks in a fixed order.
func (s *AccountService) lockPair(a, b string) func() {
	if a == b {
		s.locks.Lock(a)
		return func() { s.locks.Unlock(a) }
	}
	if b < a {
		a, b = b, a
	}
	s.locks.Lock(a)
	s.locks.Lock(b)
	return func() {
		s.locks.Unlock(b)
		s.locks.Unlock(a)
	}
}
