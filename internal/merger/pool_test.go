package merger

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolDefaultsToCPUCount(t *testing.T) {
	assert.Equal(t, runtime.NumCPU(), NewPool(0).Size())
	assert.Equal(t, 3, NewPool(3).Size())
}

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(2)

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Do(context.Background(), func() error {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				running.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPoolReturnsFnError(t *testing.T) {
	boom := errors.New("boom")
	err := NewPool(1).Do(context.Background(), func() error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestPoolHonorsContext(t *testing.T) {
	p := NewPool(1)
	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = p.Do(context.Background(), func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	called := false
	err := p.Do(ctx, func() error { called = true; return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, called)
}
