package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupSQLite(t *testing.T) *SQLiteBackend {
	t.Helper()
	b, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestSQLiteBackend_SetGetUpsert(t *testing.T) {
	b := setupSQLite(t)
	ctx := context.Background()

	_, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set(ctx, "k", []byte(`"old"`)))
	require.NoError(t, b.Set(ctx, "k", []byte(`"new"`)))

	v, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `"new"`, string(v))
}

func TestSQLiteBackend_DeleteAndPrefix(t *testing.T) {
	b := setupSQLite(t)
	ctx := context.Background()

	for _, k := range []string{"ns_a", "ns_b", "nsx_c", "élan_d"} {
		require.NoError(t, b.Set(ctx, k, []byte("1")))
	}

	require.NoError(t, b.Delete(ctx, "ns_a"))
	_, ok, err := b.Get(ctx, "ns_a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.DeletePrefix(ctx, "ns_"))
	_, ok, _ = b.Get(ctx, "ns_b")
	assert.False(t, ok)
	_, ok, _ = b.Get(ctx, "nsx_c")
	assert.True(t, ok)

	require.NoError(t, b.DeletePrefix(ctx, "élan_"))
	_, ok, _ = b.Get(ctx, "élan_d")
	assert.False(t, ok)
}

func TestSQLiteBackend_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.db")
	ctx := context.Background()

	b, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	s := NewStore(b, "clickearn")
	require.NoError(t, s.Set(ctx, s.Key("theme"), "light"))
	require.NoError(t, b.Close())

	b, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer b.Close()
	s = NewStore(b, "clickearn")

	theme, err := GetOr(ctx, s, s.Key("theme"), "dark")
	require.NoError(t, err)
	assert.Equal(t, "light", theme)
}
