package memory

import (
	quicbridge "github.com/quiclink/quicbridge"
	bridgeerrors "github.com/quiclink/quicbridge/errors"
	"go.uber.org/zap"
)

// TrackedAllocator pairs each live engine allocation with its byte count so
// the size-paired free can always be satisfied. Unlike an Arena, entries are
// freed individually rather than in bulk, so the allocator can back
// long-lived resources that outlive any single call. Mutated only on the
// dispatch goroutine; no lock.
type TrackedAllocator struct {
	alloc quicbridge.Allocator
	sizes map[uint64]uint32
}

// NewTracked creates a tracked allocator drawing from the engine's
// allocator.
func NewTracked(alloc quicbridge.Allocator) *TrackedAllocator {
	return &TrackedAllocator{alloc: alloc, sizes: make(map[uint64]uint32)}
}

// Allocate requests size bytes from the engine's heap. Zero-byte requests
// are rejected at allocation time.
func (t *TrackedAllocator) Allocate(size uint32) (uint64, error) {
	if size == 0 {
		return 0, bridgeerrors.New(bridgeerrors.PhaseMemory, bridgeerrors.KindInvalidSize).
			Detail("zero-byte allocation").Build()
	}
	addr, err := t.alloc.Alloc(size)
	if err != nil {
		return 0, bridgeerrors.AllocationFailed(size, err)
	}
	t.sizes[addr] = size
	return addr, nil
}

// Free releases one tracked address. Freeing an address this allocator
// never returned, or one already freed, is a safe no-op: the map is
// untouched and the engine is not called. That protection is defensive,
// not a license to double-free.
func (t *TrackedAllocator) Free(addr uint64) {
	size, ok := t.sizes[addr]
	if !ok {
		Logger().Debug("free of untracked address ignored", zap.Uint64("addr", addr))
		return
	}
	delete(t.sizes, addr)
	t.alloc.Free(addr, size)
}

// Size returns the byte count an address was allocated with.
func (t *TrackedAllocator) Size(addr uint64) (uint32, bool) {
	size, ok := t.sizes[addr]
	return size, ok
}

// Tracked returns the number of live allocations.
func (t *TrackedAllocator) Tracked() int {
	return len(t.sizes)
}
