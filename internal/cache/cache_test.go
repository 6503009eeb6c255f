package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	Timestamp int64   `json:"timestamp"`
	Value     float64 `json:"value"`
}

func TestGetOrComputeCachesResult(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	c := New(store, nil)

	var hits, misses int
	c.OnLookup(func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	})

	calls := 0
	compute := func(context.Context) ([]point, error) {
		calls++
		return []point{{Timestamp: 1000, Value: 1.5}}, nil
	}

	first, err := GetOrCompute(context.Background(), c, "k", time.Minute, compute)
	require.NoError(t, err)
	second, err := GetOrCompute(context.Background(), c, "k", time.Minute, compute)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestGetOrComputeDoesNotCacheErrors(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	c := New(store, nil)

	boom := errors.New("boom")
	_, err := GetOrCompute(context.Background(), c, "k", time.Minute, func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, store.Len())
}

func TestGetOrComputeBypassesWithoutTTL(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	c := New(store, nil)

	for i := 0; i < 2; i++ {
		_, err := GetOrCompute(context.Background(), c, "k", 0, func(context.Context) (int, error) { return 1, nil })
		require.NoError(t, err)
	}
	assert.Zero(t, store.Len())

	v, err := GetOrCompute(context.Background(), (*Cache)(nil), "k", time.Minute, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestGetOrComputeSharesConcurrentMisses(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	c := New(store, nil)

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := GetOrCompute(context.Background(), c, "shared", time.Minute, compute)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, 42, v)
	}
	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	now := time.Unix(1000, 0)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Set(context.Background(), "a", []byte("1"), time.Second))
	v, ok, err := store.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	now = now.Add(2 * time.Second)
	_, ok, _ = store.Get(context.Background(), "a")
	assert.False(t, ok)

	store.sweep()
	assert.Zero(t, store.Len())
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), time.Minute))
	require.NoError(t, store.Delete(ctx, "a", "missing"))

	_, ok, _ := store.Get(ctx, "a")
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "b")
	assert.True(t, ok)
}
