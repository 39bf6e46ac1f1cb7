package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsTasks(t *testing.T) {
	pool := NewPool(2, zerolog.Nop())
	pool.Start()

	var count atomic.Int32
	for i := 0; i < 5; i++ {
		require.True(t, pool.Submit(func(context.Context) { count.Add(1) }))
	}

	require.Eventually(t, func() bool { return count.Load() == 5 }, time.Second, 10*time.Millisecond)
	pool.Stop(context.Background())
}

func TestPoolRecoversFromPanics(t *testing.T) {
	pool := NewPool(1, zerolog.Nop())
	pool.Start()
	defer pool.Stop(context.Background())

	var ran atomic.Bool
	require.True(t, pool.Submit(func(context.Context) { panic("boom") }))
	require.True(t, pool.Submit(func(context.Context) { ran.Store(true) }))

	require.Eventually(t, ran.Load, time.Second, 10*time.Millisecond)
}

func TestPoolSubmitNeverBlocks(t *testing.T) {
	pool := NewPool(1, zerolog.Nop())

	accepted := 0
	for i := 0; i < 20; i++ {
		if pool.Submit(func(context.Context) {}) {
			accepted++
		}
	}
	require.Equal(t, 10, accepted)

	pool.Start()
	pool.Stop(context.Background())
	require.False(t, pool.Submit(func(context.Context) {}))
}

func TestPoolStopCancelsTasks(t *testing.T) {
	pool := NewPool(1, zerolog.Nop())
	pool.Start()

	started := make(chan struct{})
	var cancelled atomic.Bool
	require.True(t, pool.Submit(func(ctx context.Context) {
		close(started)
		select {
		case <-ctx.Done():
			cancelled.Store(true)
		case <-time.After(5 * time.Second):
		}
	}))

	<-started
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	pool.Stop(ctx)
	require.True(t, cancelled.Load())
}
