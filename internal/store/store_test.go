package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scythe504/drawpool-backend/internal/store"
)

// runStoreContract exercises the behaviour every Store implementation must
// share. Keys are namespaced by t.Name() so one backend can serve many runs.
func runStoreContract(t *testing.T, s store.Store) {
	ctx := context.Background()
	ns := t.Name() + ":"

	t.Run("HSetMergesFields", func(t *testing.T) {
		key := ns + "hash"
		require.NoError(t, s.HSet(ctx, key, map[string]string{"a": "1", "b": "2"}))
		require.NoError(t, s.HSet(ctx, key, map[string]string{"b": "3", "c": "4"}))

		got, err := s.HGetAll(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"a": "1", "b": "3", "c": "4"}, got)
	})

	t.Run("HGetAllMissingIsEmpty", func(t *testing.T) {
		got, err := s.HGetAll(ctx, ns+"nothing")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("SetGetOverwrite", func(t *testing.T) {
		key := ns + "string"
		require.NoError(t, s.Set(ctx, key, "first"))
		require.NoError(t, s.Set(ctx, key, "second"))

		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "second", got)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := s.Get(ctx, ns+"missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("SetNXOnlyOnce", func(t *testing.T) {
		key := ns + "lock"
		ok, err := s.SetNX(ctx, key, "a", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.SetNX(ctx, key, "b", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "a", got)
	})

	t.Run("DelRemovesEveryKind", func(t *testing.T) {
		h, str := ns+"del:h", ns+"del:s"
		require.NoError(t, s.HSet(ctx, h, map[string]string{"x": "y"}))
		require.NoError(t, s.Set(ctx, str, "v"))
		require.NoError(t, s.Del(ctx, h, str, ns+"del:absent"))

		got, err := s.HGetAll(ctx, h)
		require.NoError(t, err)
		assert.Empty(t, got)
		_, err = s.Get(ctx, str)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("KeysByPrefix", func(t *testing.T) {
		p := ns + "room:1:player:"
		require.NoError(t, s.HSet(ctx, p+"a", map[string]string{"n": "1"}))
		require.NoError(t, s.HSet(ctx, p+"b", map[string]string{"n": "2"}))
		require.NoError(t, s.Set(ctx, ns+"room:1:graph:a", "svg"))
		require.NoError(t, s.HSet(ctx, ns+"room:10:player:z", map[string]string{"n": "3"}))

		keys, err := s.Keys(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, []string{p + "a", p + "b"}, keys)
	})

	t.Run("KeysTreatsLikeWildcardsLiterally", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, ns+"a_b:1", "x"))
		require.NoError(t, s.Set(ctx, ns+"axb:1", "x"))

		keys, err := s.Keys(ctx, ns+"a_b:")
		require.NoError(t, err)
		assert.Equal(t, []string{ns + "a_b:1"}, keys)
	})
}
