package locking

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/INLOpen/prevaldb/core"
)

func TestReadWrite_ConcurrentReaders(t *testing.T) {
	s := NewReadWrite(time.Second)
	ctx := context.Background()

	var active atomic.Int32
	var maxActive atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			guard, err := s.AcquireRead(ctx)
			assert.NoError(t, err)
			n := active.Add(1)
			for {
				cur := maxActive.Load()
				if n <= cur || maxActive.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			active.Add(-1)
			guard.Release()
		}()
	}
	wg.Wait()

	assert.Greater(t, maxActive.Load(), int32(1), "readers should overlap")
}

func TestReadWrite_WriterExcludesReaders(t *testing.T) {
	s := NewReadWrite(time.Second)
	ctx := context.Background()

	writeGuard, err := s.AcquireWrite(ctx)
	require.NoError(t, err)

	readerDone := make(chan struct{})
	var writerReleased atomic.Bool
	go func() {
		defer close(readerDone)
		guard, err := s.AcquireRead(ctx)
		assert.NoError(t, err)
		assert.True(t, writerReleased.Load(), "reader must not run while the write guard is held")
		guard.Release()
	}()

	time.Sleep(50 * time.Millisecond)
	writerReleased.Store(true)
	writeGuard.Release()

	select {
	case <-readerDone:
	case <-time.After(time.Second):
		t.Fatal("reader never acquired after writer released")
	}
}

func TestReadWrite_WriteTimesOutBehindReader(t *testing.T) {
	s := NewReadWrite(100 * time.Millisecond)
	ctx := context.Background()

	readGuard, err := s.AcquireRead(ctx)
	require.NoError(t, err)
	defer readGuard.Release()

	start := time.Now()
	_, err = s.AcquireWrite(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

func TestReadWrite_CallerCancellationIsNotATimeout(t *testing.T) {
	s := NewReadWrite(time.Second)

	writeGuard, err := s.AcquireWrite(context.Background())
	require.NoError(t, err)
	defer writeGuard.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = s.AcquireRead(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, core.ErrLockTimeout)
}

func TestExclusive_ReadersAreMutuallyExclusive(t *testing.T) {
	s := NewExclusive(100 * time.Millisecond)
	ctx := context.Background()

	guard, err := s.AcquireRead(ctx)
	require.NoError(t, err)

	_, err = s.AcquireRead(ctx)
	assert.ErrorIs(t, err, core.ErrLockTimeout, "second reader should time out under exclusive mode")

	guard.Release()
	guard2, err := s.AcquireRead(ctx)
	require.NoError(t, err)
	guard2.Release()
}

func TestNone_AlwaysSucceeds(t *testing.T) {
	s := NewNone()
	ctx := context.Background()

	g1, err := s.AcquireWrite(ctx)
	require.NoError(t, err)
	g2, err := s.AcquireWrite(ctx)
	require.NoError(t, err)
	g1.Release()
	g2.Release()
}

func TestGuard_ReleaseIsIdempotent(t *testing.T) {
	s := NewReadWrite(time.Second)

	guard, err := s.AcquireWrite(context.Background())
	require.NoError(t, err)

	guard.Release()
	guard.Release() // must not panic or double-release the semaphore

	// If the double release corrupted the semaphore, this would fail.
	guard2, err := s.AcquireWrite(context.Background())
	require.NoError(t, err)
	guard2.Release()
}
