package store_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/devrev/viewcounter/internal/config"
	"github.com/devrev/viewcounter/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("memory backend", func(t *testing.T) {
		s, err := store.New(config.StoreConfig{Backend: config.BackendMemory}, config.RedisConfig{}, zap.NewNop())
		require.NoError(t, err)
		defer s.Close()

		assert.IsType(t, &store.MemoryCounterStore{}, s)
		n, err := s.Incr(ctx, "pageviews:projects:p")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("redis backend", func(t *testing.T) {
		mr := miniredis.RunT(t)
		redisCfg := config.RedisConfig{URL: "redis://" + mr.Addr() + "/0"}

		s, err := store.New(config.StoreConfig{Backend: config.BackendRedis}, redisCfg, zap.NewNop())
		require.NoError(t, err)
		defer s.Close()

		assert.IsType(t, &store.RedisCounterStore{}, s)
		_, err = s.Incr(ctx, "pageviews:projects:p")
		require.NoError(t, err)
		assert.Equal(t, "1", mustGet(t, mr, "pageviews:projects:p"))
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := store.New(config.StoreConfig{Backend: "etcd"}, config.RedisConfig{}, zap.NewNop())
		assert.ErrorContains(t, err, "unknown store backend")
	})
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
