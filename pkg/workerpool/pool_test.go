package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	p := New(2, nil)

	var current, peak atomic.Int32
	var mu sync.Mutex

	for i := 0; i < 6; i++ {
		err := p.Submit(context.Background(), func(ctx context.Context) {
			n := current.Add(1)
			mu.Lock()
			if n > peak.Load() {
				peak.Store(n)
			}
			mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			current.Add(-1)
		})
		require.NoError(t, err)
	}

	p.Wait()
	require.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPoolRejectsAfterClose(t *testing.T) {
	p := New(1, nil)
	p.Close()

	err := p.Submit(context.Background(), func(ctx context.Context) {})
	require.ErrorIs(t, err, ErrClosed)
}

func TestPoolSubmitHonorsContext(t *testing.T) {
	p := New(1, nil)
	release := make(chan struct{})
	defer close(release)

	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) {
		<-release
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := p.Submit(ctx, func(ctx context.Context) {})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPoolRecoversPanics(t *testing.T) {
	p := New(1, nil)
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) {
		panic("boom")
	}))
	p.Wait()

	// The worker slot is free again after the panic.
	done := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func(ctx context.Context) {
		close(done)
	}))
	<-done
	p.Wait()
}
