package kv

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// failingBackend returns err from every call.
type failingBackend struct{ err error }

func (f failingBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, f.err }
func (f failingBackend) Set(context.Context, string, []byte) error         { return f.err }
func (f failingBackend) Delete(context.Context, string) error              { return f.err }
func (f failingBackend) DeletePrefix(context.Context, string) error        { return f.err }
func (f failingBackend) Close() error                                      { return nil }

func TestStore_Key(t *testing.T) {
	s := NewStore(NewMemoryBackend(), "clickearn")
	assert.Equal(t, "clickearn_tasks_alice", s.Key("tasks", "alice"))
	assert.Equal(t, "clickearn_session", s.Key("session"))
}

func TestGetOr_AbsentReturnsDefault(t *testing.T) {
	s := NewStore(NewMemoryBackend(), "ns")

	got, err := GetOr(context.Background(), s, s.Key("missing"), doc{Name: "default"})
	require.NoError(t, err)
	assert.Equal(t, doc{Name: "default"}, got)
}

func TestStore_SetThenGet(t *testing.T) {
	s := NewStore(NewMemoryBackend(), "ns")
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, s.Key("d"), doc{Name: "x", Count: 3}))

	got, err := GetOr(ctx, s, s.Key("d"), doc{})
	require.NoError(t, err)
	assert.Equal(t, doc{Name: "x", Count: 3}, got)
}

func TestGetOr_CorruptValueFallsBack(t *testing.T) {
	mem := NewMemoryBackend()
	s := NewStore(mem, "ns")
	ctx := context.Background()

	require.NoError(t, mem.Set(ctx, s.Key("d"), []byte("{not json")))

	got, err := GetOr(ctx, s, s.Key("d"), doc{Name: "fallback"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", got.Name)
}

func TestGetOr_BackendFailure(t *testing.T) {
	boom := errors.New("disk on fire")
	s := NewStore(failingBackend{err: boom}, "ns")

	_, err := GetOr(context.Background(), s, "k", doc{})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, boom)
}

func TestStore_WriteFailuresAreReported(t *testing.T) {
	boom := errors.New("quota exceeded")
	s := NewStore(failingBackend{err: boom}, "ns")
	ctx := context.Background()

	assert.ErrorIs(t, s.Set(ctx, "k", doc{}), boom)
	assert.ErrorIs(t, s.Remove(ctx, "k"), boom)
	assert.ErrorIs(t, s.Clear(ctx), boom)
}

func TestStore_RemoveAndClear(t *testing.T) {
	mem := NewMemoryBackend()
	s := NewStore(mem, "app")
	other := NewStore(mem, "other")
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, s.Key("a"), 1))
	require.NoError(t, s.Set(ctx, s.Key("b"), 2))
	require.NoError(t, other.Set(ctx, other.Key("a"), 3))

	require.NoError(t, s.Remove(ctx, s.Key("a")))
	require.NoError(t, s.Remove(ctx, s.Key("never-set")))

	v, err := GetOr(ctx, s, s.Key("a"), -1)
	require.NoError(t, err)
	assert.Equal(t, -1, v)

	require.NoError(t, s.Clear(ctx))
	assert.ElementsMatch(t, []string{"other_a"}, mem.Keys())
}

// Namespaces that differ only after a dash share a backend without Clear
// reaching across.
func TestStore_ClearKeepsSiblingNamespace(t *testing.T) {
	mem := NewMemoryBackend()
	prod := NewStore(mem, "clickearn")
	staging := NewStore(mem, "clickearn-staging")
	ctx := context.Background()

	require.NoError(t, prod.Set(ctx, prod.Key("users"), []string{"alice"}))
	require.NoError(t, prod.Set(ctx, prod.Key("tasks", "alice"), 1))
	require.NoError(t, staging.Set(ctx, staging.Key("users"), []string{"bob"}))
	require.NoError(t, staging.Set(ctx, staging.Key("tasks", "bob"), 2))

	require.NoError(t, prod.Clear(ctx))
	assert.ElementsMatch(t, []string{"clickearn-staging_users", "clickearn-staging_tasks_bob"}, mem.Keys())

	users, err := GetOr(ctx, staging, staging.Key("users"), []string(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, users)
}
