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

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestGetOrLoadSingleFlight(t *testing.T) {
	t.Parallel()

	c := New(Options{})
	var calls atomic.Int32
	release := make(chan struct{})

	load := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-release
		return []string{"ada", "grace"}, nil
	}

	const callers = 50
	var wg sync.WaitGroup
	results := make([]any, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrLoad(context.Background(), "users_all", time.Minute, load)
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, []string{"ada", "grace"}, results[i])
	}
}

func TestGetOrLoadExpiresAfterTTL(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(Options{Now: clock.Now})
	var calls atomic.Int32
	load := func(ctx context.Context) (any, error) {
		return int(calls.Add(1)), nil
	}

	v, err := c.GetOrLoad(context.Background(), "grades_all", 30*time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clock.Advance(29 * time.Minute)
	v, err = c.GetOrLoad(context.Background(), "grades_all", 30*time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clock.Advance(time.Minute)
	v, err = c.GetOrLoad(context.Background(), "grades_all", 30*time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestGetOrLoadDoesNotCacheErrors(t *testing.T) {
	t.Parallel()

	c := New(Options{})
	boom := errors.New("upstream unavailable")
	var calls atomic.Int32
	load := func(ctx context.Context) (any, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		return "ok", nil
	}

	_, err := c.GetOrLoad(context.Background(), "departments_all", time.Minute, load)
	require.ErrorIs(t, err, boom)

	v, err := c.GetOrLoad(context.Background(), "departments_all", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGetOrLoadWaiterHonorsContext(t *testing.T) {
	t.Parallel()

	c := New(Options{})
	release := make(chan struct{})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetOrLoad(ctx, "users_all", time.Minute, func(ctx context.Context) (any, error) {
		<-release
		return "late", nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestMaxEntriesEvictsSoonestExpiring(t *testing.T) {
	t.Parallel()

	c := New(Options{MaxEntries: 2})
	c.Set("a", 1, time.Minute)
	c.Set("b", 2, time.Hour)
	c.Set("c", 3, time.Hour)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestSweepAndInvalidate(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := New(Options{Now: clock.Now})
	c.Set("short", 1, time.Second)
	c.Set("long", 2, time.Hour)
	c.Set("gone", 3, time.Hour)

	c.Invalidate("gone")
	clock.Advance(time.Minute)

	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
}

func TestTypedLoad(t *testing.T) {
	t.Parallel()

	c := New(Options{})
	got, err := Load(context.Background(), c, "ids", time.Minute, func(context.Context) ([]int64, error) {
		return []int64{1, 2}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, got)

	_, err = Load(context.Background(), c, "other", time.Minute, func(context.Context) ([]int64, error) {
		return nil, errors.New("nope")
	})
	require.Error(t, err)
}
