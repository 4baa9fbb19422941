package pool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool(t *testing.T) {
	p, err := NewPool("test", BatchPool, BatchPoolConfig(3))
	require.NoError(t, err)
	defer p.Release()

	assert.Equal(t, "test", p.Name())
	assert.Equal(t, BatchPool, p.Type())
	assert.Equal(t, 3, p.Cap())
}

func TestNewPool_InvalidCapacity(t *testing.T) {
	_, err := NewPool("bad", BatchPool, BatchPoolConfig(0))
	assert.ErrorIs(t, err, ErrInvalidPoolConfig)
}

func TestPoolSubmit_BoundsConcurrency(t *testing.T) {
	p, err := NewPool("bounded", BatchPool, BatchPoolConfig(2))
	require.NoError(t, err)
	defer p.Release()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(func() {
			defer wg.Done()
			n := running.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
		}))
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, int64(10), p.Stats().CompletedTasks)
}

func TestPoolSubmitWithContext_Cancelled(t *testing.T) {
	p, err := NewPool("ctx", BatchPool, BatchPoolConfig(1))
	require.NoError(t, err)
	defer p.Release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var executed atomic.Bool
	err = p.SubmitWithContext(ctx, func() { executed.Store(true) })
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, executed.Load())
}

func TestPoolSubmit_AfterRelease(t *testing.T) {
	p, err := NewPool("closed", BatchPool, BatchPoolConfig(1))
	require.NoError(t, err)
	p.Release()

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
}

func TestPool_PanicIsRecovered(t *testing.T) {
	var handled atomic.Bool
	cfg := BatchPoolConfig(1)
	cfg.PanicHandler = func(interface{}) { handled.Store(true) }

	p, err := NewPool("panic", BatchPool, cfg)
	require.NoError(t, err)
	defer p.Release()

	require.NoError(t, p.Submit(func() { panic("boom") }))
	assert.Eventually(t, handled.Load, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return p.Stats().PanicRecovered == 1 }, time.Second, 5*time.Millisecond)
}

func TestGo(t *testing.T) {
	done := make(chan struct{})
	Go(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("background task did not run")
	}
}
