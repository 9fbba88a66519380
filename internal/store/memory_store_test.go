package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/devrev/viewcounter/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestMemoryStore(t *testing.T, clock *fakeClock) *store.MemoryCounterStore {
	t.Helper()
	var opts []store.MemoryOption
	if clock != nil {
		opts = append(opts, store.WithClock(clock.Now))
	}
	s := store.NewMemoryCounterStore(zap.NewNop(), opts...)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "pageviews:blogs:my-post", store.CounterKey("blogs", "my-post"))
	assert.Equal(t, "deduplicate:abc123:my-post", store.DedupKey("abc123", "my-post"))
}

func TestMemoryCounterStore_Incr(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t, nil)

	t.Run("missing key starts at zero", func(t *testing.T) {
		n, err := s.Incr(ctx, "pageviews:blogs:a")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("returns the new value", func(t *testing.T) {
		n, err := s.Incr(ctx, "pageviews:blogs:a")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Incr(ctx, "pageviews:blogs:b")
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		n, found, err := s.Get(ctx, "pageviews:blogs:b")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, int64(50), n)
	})
}

func TestMemoryCounterStore_Get(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t, nil)

	n, found, err := s.Get(ctx, "pageviews:blogs:never")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, int64(0), n)

	_, err = s.SetNX(ctx, "not-a-number", "hello", 0)
	require.NoError(t, err)

	_, _, err = s.Get(ctx, "not-a-number")
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
}

func TestMemoryCounterStore_MGet(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t, nil)

	_, err := s.Incr(ctx, "a")
	require.NoError(t, err)
	_, err = s.Incr(ctx, "c")
	require.NoError(t, err)
	_, err = s.Incr(ctx, "c")
	require.NoError(t, err)

	values, err := s.MGet(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, values, 3)
	require.NotNil(t, values[0])
	assert.Equal(t, int64(1), *values[0])
	assert.Nil(t, values[1])
	require.NotNil(t, values[2])
	assert.Equal(t, int64(2), *values[2])
}

func TestMemoryCounterStore_SetNX(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	s := newTestMemoryStore(t, clock)

	set, err := s.SetNX(ctx, "deduplicate:fp:slug", true, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, set)

	set, err = s.SetNX(ctx, "deduplicate:fp:slug", true, 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, set)
	assert.Equal(t, 1, s.Size())

	clock.Advance(24*time.Hour - time.Second)
	set, err = s.SetNX(ctx, "deduplicate:fp:slug", true, 24*time.Hour)
	require.NoError(t, err)
	assert.False(t, set, "marker must hold until the window ends")

	clock.Advance(time.Second)
	assert.Equal(t, 0, s.Size())
	set, err = s.SetNX(ctx, "deduplicate:fp:slug", true, 24*time.Hour)
	require.NoError(t, err)
	assert.True(t, set, "marker expires at the end of the window")
}

func TestMemoryCounterStore_Close(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryCounterStore(zap.NewNop())

	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err := s.Incr(ctx, "a")
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
	_, _, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
	_, err = s.MGet(ctx, []string{"a"})
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
	_, err = s.SetNX(ctx, "a", true, time.Minute)
	assert.ErrorIs(t, err, store.ErrStoreUnavailable)
	assert.ErrorIs(t, s.Ping(ctx), store.ErrStoreUnavailable)
}
