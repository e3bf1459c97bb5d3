package idempotency

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_Replay(t *testing.T) {
	ctx := context.Background()
	g := New(16, time.Minute)

	var calls int
	place := func(context.Context) (int64, error) {
		calls++
		return int64(100 + calls), nil
	}

	id, replayed, err := g.Do(ctx, 1, "abc", place)
	require.NoError(t, err)
	assert.Equal(t, int64(101), id)
	assert.False(t, replayed)

	id, replayed, err = g.Do(ctx, 1, "abc", place)
	require.NoError(t, err)
	assert.Equal(t, int64(101), id)
	assert.True(t, replayed)

	// Keys are scoped per user.
	id, replayed, err = g.Do(ctx, 2, "abc", place)
	require.NoError(t, err)
	assert.Equal(t, int64(102), id)
	assert.False(t, replayed)

	g.Forget(1, "abc")
	id, replayed, err = g.Do(ctx, 1, "abc", place)
	require.NoError(t, err)
	assert.Equal(t, int64(103), id)
	assert.False(t, replayed)
}

func TestGuard_FailureNotRemembered(t *testing.T) {
	ctx := context.Background()
	g := New(16, time.Minute)

	boom := errors.New("boom")
	_, _, err := g.Do(ctx, 1, "k", func(context.Context) (int64, error) { return 0, boom })
	require.ErrorIs(t, err, boom)

	id, replayed, err := g.Do(ctx, 1, "k", func(context.Context) (int64, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.False(t, replayed)
}

func TestGuard_Expiry(t *testing.T) {
	ctx := context.Background()
	g := New(16, 20*time.Millisecond)

	_, _, err := g.Do(ctx, 1, "k", func(context.Context) (int64, error) { return 1, nil })
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		id, replayed, err := g.Do(ctx, 1, "k", func(context.Context) (int64, error) { return 2, nil })
		return err == nil && !replayed && id == 2
	}, time.Second, 10*time.Millisecond)
}

func TestGuard_Concurrent(t *testing.T) {
	ctx := context.Background()
	g := New(16, time.Minute)

	var calls atomic.Int32
	release := make(chan struct{})
	place := func(context.Context) (int64, error) {
		calls.Add(1)
		<-release
		return 42, nil
	}

	const n = 8
	var (
		wg       sync.WaitGroup
		replayed atomic.Int32
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, r, err := g.Do(ctx, 1, "same", place)
			assert.NoError(t, err)
			assert.Equal(t, int64(42), id)
			if r {
				replayed.Add(1)
			}
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(n-1), replayed.Load())
}

func TestGuard_LeaderCancelled(t *testing.T) {
	g := New(16, time.Minute)

	leaderCtx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	place := func(ctx context.Context) (int64, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return 9, nil
	}

	leaderDone := make(chan error, 1)
	go func() {
		_, _, err := g.Do(leaderCtx, 1, "k", place)
		leaderDone <- err
	}()
	<-started

	followerDone := make(chan int64, 1)
	go func() {
		id, replayed, err := g.Do(context.Background(), 1, "k", place)
		assert.NoError(t, err)
		assert.True(t, replayed)
		followerDone <- id
	}()

	// The leader hangs up while the placement is in flight.
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(release)

	require.NoError(t, <-leaderDone)
	assert.Equal(t, int64(9), <-followerDone)
}
