package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	t.Parallel()

	p := New(2, nil)
	var running, peak atomic.Int32
	release := make(chan struct{})

	for i := 0; i < 6; i++ {
		require.NoError(t, p.Go(context.Background(), func(context.Context) {
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			<-release
			running.Add(-1)
		}))
	}

	time.Sleep(25 * time.Millisecond)
	close(release)
	p.Close()

	assert.Equal(t, int32(2), peak.Load())
	assert.Equal(t, int32(0), running.Load())
}

func TestPoolSkipsCanceledTask(t *testing.T) {
	t.Parallel()

	p := New(1, nil)
	block := make(chan struct{})
	require.NoError(t, p.Go(context.Background(), func(context.Context) { <-block }))

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	require.NoError(t, p.Go(ctx, func(context.Context) { ran.Store(true) }))
	cancel()

	close(block)
	p.Close()
	assert.False(t, ran.Load())
}

func TestPoolClosedRejects(t *testing.T) {
	t.Parallel()

	p := New(0, nil)
	p.Close()
	assert.ErrorIs(t, p.Go(context.Background(), func(context.Context) {}), ErrClosed)
}

func TestPoolPassesContext(t *testing.T) {
	t.Parallel()

	p := New(500, nil)
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	got := make(chan any, 1)
	require.NoError(t, p.Go(ctx, func(ctx context.Context) { got <- ctx.Value(key{}) }))
	assert.Equal(t, "v", <-got)
	p.Close()
}
