// Package kv provides the durable key-value store every record lives in.
// Values are JSON documents; backends only move bytes.
package kv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrStoreUnavailable is returned when a backend read fails. Callers doing
// read-modify-write must not fall back to a default in that case, or they
// would overwrite data they never saw.
var ErrStoreUnavailable = errors.New("store unavailable")

// Backend stores raw bytes by key.
type Backend interface {
	// Get returns the value and true, or nil and false if the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	Close() error
}

// Store namespaces keys and serialises values for a Backend.
type Store struct {
	backend   Backend
	namespace string
}

// NewStore creates a Store whose keys all start with namespace.
func NewStore(backend Backend, namespace string) *Store {
	return &Store{backend: backend, namespace: namespace}
}

// Key joins parts under the store namespace, e.g. Key("tasks", "alice")
// yields "clickearn_tasks_alice".
func (s *Store) Key(parts ...string) string {
	return s.namespace + "_" + strings.Join(parts, "_")
}

// Namespace returns the key prefix owned by this store.
func (s *Store) Namespace() string {
	return s.namespace
}

// GetOr reads key into a T. An absent key yields def. A value that does not
// decode is treated as absent and logged; only backend failures are errors.
func GetOr[T any](ctx context.Context, s *Store, key string, def T) (T, error) {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return def, fmt.Errorf("%w: get %s: %w", ErrStoreUnavailable, key, err)
	}
	if !ok {
		return def, nil
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Corrupt value in store, using default")
		return def, nil
	}
	return v, nil
}

// Set serialises v and writes it under key.
func (s *Store) Set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.backend.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// Clear erases every key in this store's namespace and nothing else.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.backend.DeletePrefix(ctx, s.namespace+"_"); err != nil {
		return fmt.Errorf("failed to clear namespace %s: %w", s.namespace, err)
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
