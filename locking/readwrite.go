package locking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/INLOpen/prevaldb/core"
)

// maxReaders bounds the number of concurrently held read guards. A write
// guard acquires the full weight, which excludes every reader.
const maxReaders = 1 << 30

// ReadWriteSynchronizer allows N concurrent readers or a single writer,
// with a bounded wait on acquisition.
type ReadWriteSynchronizer struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

var _ Synchronizer = (*ReadWriteSynchronizer)(nil)

func NewReadWrite(timeout time.Duration) *ReadWriteSynchronizer {
	return &ReadWriteSynchronizer{
		sem:     semaphore.NewWeighted(maxReaders),
		timeout: timeout,
	}
}

func (s *ReadWriteSynchronizer) AcquireRead(ctx context.Context) (Guard, error) {
	if err := acquire(ctx, s.sem, 1, s.timeout); err != nil {
		return nil, err
	}
	return newGuard(func() { s.sem.Release(1) }), nil
}

func (s *ReadWriteSynchronizer) AcquireWrite(ctx context.Context) (Guard, error) {
	if err := acquire(ctx, s.sem, maxReaders, s.timeout); err != nil {
		return nil, err
	}
	return newGuard(func() { s.sem.Release(maxReaders) }), nil
}

// ExclusiveSynchronizer gives every acquisition, read or write, the same
// single mutual-exclusion semantics.
type ExclusiveSynchronizer struct {
	sem     *semaphore.Weighted
	timeout time.Duration
}

var _ Synchronizer = (*ExclusiveSynchronizer)(nil)

func NewExclusive(timeout time.Duration) *ExclusiveSynchronizer {
	return &ExclusiveSynchronizer{
		sem:     semaphore.NewWeighted(1),
		timeout: timeout,
	}
}

func (s *ExclusiveSynchronizer) AcquireRead(ctx context.Context) (Guard, error) {
	if err := acquire(ctx, s.sem, 1, s.timeout); err != nil {
		return nil, err
	}
	return newGuard(func() { s.sem.Release(1) }), nil
}

func (s *ExclusiveSynchronizer) AcquireWrite(ctx context.Context) (Guard, error) {
	return s.AcquireRead(ctx)
}

// NoneSynchronizer performs no synchronization and always succeeds
// immediately. Use only when the caller externally guarantees
// single-threaded access.
type NoneSynchronizer struct{}

var _ Synchronizer = (*NoneSynchronizer)(nil)

func NewNone() *NoneSynchronizer {
	return &NoneSynchronizer{}
}

func (s *NoneSynchronizer) AcquireRead(ctx context.Context) (Guard, error) {
	return newGuard(func() {}), nil
}

func (s *NoneSynchronizer) AcquireWrite(ctx context.Context) (Guard, error) {
	return newGuard(func() {}), nil
}

// acquire takes n units from the semaphore, bounded by both the caller's
// context and the configured timeout. A timeout maps to core.ErrLockTimeout;
// caller cancellation propagates as-is.
func acquire(ctx context.Context, sem *semaphore.Weighted, n int64, timeout time.Duration) error {
	acquireCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := sem.Acquire(acquireCtx, n); err != nil {
		if errors.Is(acquireCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("%w after %s", core.ErrLockTimeout, timeout)
		}
		return err
	}
	return nil
}
