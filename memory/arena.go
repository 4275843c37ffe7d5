package memory

import (
	quicbridge "github.com/quiclink/quicbridge"
	bridgeerrors "github.com/quiclink/quicbridge/errors"
	"go.uber.org/zap"
)

type allocation struct {
	addr uint64
	size uint32
}

// Arena owns engine memory allocated for the lifetime of one call scope.
// Everything tracked by the arena is freed in one ReleaseAll; non-memory
// cleanups registered with DeferRelease run first, in reverse order of
// registration. An arena belongs to exactly one call scope and is not safe
// for concurrent use.
type Arena struct {
	alloc    quicbridge.Allocator
	allocs   []allocation
	defers   []func()
	released bool
}

// NewArena creates an arena drawing from the engine's allocator.
func NewArena(alloc quicbridge.Allocator) *Arena {
	return &Arena{alloc: alloc}
}

// Allocate requests size bytes from the engine's heap and tracks the
// address for bulk release. Allocation on a finally-released arena is a
// recoverable error, not a fault.
func (a *Arena) Allocate(size uint32) (uint64, error) {
	if a.released {
		return 0, bridgeerrors.New(bridgeerrors.PhaseMemory, bridgeerrors.KindArenaReleased).
			Detail("arena was finally released").Build()
	}
	if size == 0 {
		return 0, bridgeerrors.New(bridgeerrors.PhaseMemory, bridgeerrors.KindInvalidSize).
			Detail("zero-byte allocation").Build()
	}
	addr, err := a.alloc.Alloc(size)
	if err != nil {
		return 0, bridgeerrors.AllocationFailed(size, err)
	}
	a.allocs = append(a.allocs, allocation{addr: addr, size: size})
	return addr, nil
}

// DeferRelease registers a non-memory cleanup to run during ReleaseAll,
// before any tracked address is freed.
func (a *Arena) DeferRelease(fn func()) {
	if fn == nil {
		return
	}
	a.defers = append(a.defers, fn)
}

// ReleaseAll runs deferred cleanups in reverse-of-registration order, then
// frees every tracked allocation through the engine's size-paired free. With
// reuse true the arena may allocate again afterwards; with reuse false it is
// permanently closed. Calling ReleaseAll on an already-released arena is a
// no-op: nothing is freed twice.
func (a *Arena) ReleaseAll(reuse bool) {
	if a.released {
		return
	}

	for i := len(a.defers) - 1; i >= 0; i-- {
		a.defers[i]()
	}
	a.defers = nil

	if n := len(a.allocs); n > 0 {
		Logger().Debug("arena releasing tracked allocations", zap.Int("count", n))
	}
	for i := len(a.allocs) - 1; i >= 0; i-- {
		a.alloc.Free(a.allocs[i].addr, a.allocs[i].size)
	}
	a.allocs = nil

	if !reuse {
		a.released = true
	}
}

// Len returns the number of tracked allocations.
func (a *Arena) Len() int {
	return len(a.allocs)
}

// Released reports whether the arena was finally released.
func (a *Arena) Released() bool {
	return a.released
}
