package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/agora/internal/store"
	"github.com/nhle/agora/tests/testutil"
)

func TestSQLiteStore_Settings(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetSetting(ctx, "theme")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetSetting(ctx, "theme", "dark"))
	require.NoError(t, s.SetSetting(ctx, "theme", "light"))

	v, ok, err := s.GetSetting(ctx, "theme")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "light", v)
}

func TestSQLiteStore_CacheEntries(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	for _, key := range []string{"notifications/u1", "notifications/u2", "conversations/u1", "notifications_x"} {
		require.NoError(t, s.SaveCacheEntry(ctx, store.CacheEntry{
			Key:       key,
			Data:      []byte(`["` + key + `"]`),
			UpdatedAt: now,
		}))
	}

	entry, err := s.LoadCacheEntry(ctx, "notifications/u1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, `["notifications/u1"]`, string(entry.Data))
	assert.True(t, entry.UpdatedAt.Equal(now))

	missing, err := s.LoadCacheEntry(ctx, "posts")
	require.NoError(t, err)
	assert.Nil(t, missing)

	entries, err := s.LoadCacheEntries(ctx, "notifications/")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "notifications/u1", entries[0].Key)

	require.NoError(t, s.DeleteCacheEntries(ctx, "notifications/"))

	entries, err = s.LoadCacheEntries(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "conversations/u1", entries[0].Key)
	assert.Equal(t, "notifications_x", entries[1].Key)
}

func TestSQLiteStore_MigrationsAreIdempotent(t *testing.T) {
	path := t.TempDir() + "/agora.db"

	first, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.SetSetting(context.Background(), "k", "v"))
	require.NoError(t, first.Close())

	second, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer second.Close()

	v, ok, err := second.GetSetting(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
