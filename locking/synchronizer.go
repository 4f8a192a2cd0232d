// Package locking provides the concurrency discipline enforced around all
// model access. A Synchronizer grants read or write guards with a bounded
// wait; the guard must be released exactly once by the caller that acquired
// it.
package locking

import (
	"context"
	"sync"
)

// Mode selects which Synchronizer implementation backs the engine.
type Mode string

const (
	ModeReadWrite Mode = "readwrite"
	ModeExclusive Mode = "exclusive"
	ModeNone      Mode = "none"
	ModeCustom    Mode = "custom"
)

// Guard represents a held acquisition. Release is idempotent.
type Guard interface {
	Release()
}

// Synchronizer grants guards around model access. While a write guard is
// held no other guard of any kind may be held; read guards may be shared
// (ReadWrite variant). Acquisition is bounded by the synchronizer's
// configured timeout and fails with core.ErrLockTimeout when exceeded, with
// no side effects.
type Synchronizer interface {
	AcquireRead(ctx context.Context) (Guard, error)
	AcquireWrite(ctx context.Context) (Guard, error)
}

// guard wraps a release function, made idempotent so a double Release cannot
// corrupt the semaphore count.
type guard struct {
	once    sync.Once
	release func()
}

func (g *guard) Release() {
	g.once.Do(g.release)
}

func newGuard(release func()) Guard {
	return &guard{release: release}
}
