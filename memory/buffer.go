package memory

import (
	quicbridge "github.com/quiclink/quicbridge"
	bridgeerrors "github.com/quiclink/quicbridge/errors"
)

// BufferView is a read-only view over a region of engine memory, typically
// a result buffer whose ownership transferred to the caller. Whoever holds
// the view owns the region until Destroy, which hands it back to the
// engine's size-paired free exactly once. Using the region after Destroy is
// undefined at the engine layer, so Destroy is safe to call twice (the
// second call is a no-op) but is never invoked implicitly.
type BufferView struct {
	heap      quicbridge.Heap
	addr      uint64
	size      uint32
	destroyed bool
}

// Wrap takes ownership of the region at addr. A null address or zero length
// produces a view that is empty rather than faulting.
func Wrap(heap quicbridge.Heap, addr uint64, size uint32) *BufferView {
	return &BufferView{heap: heap, addr: addr, size: size}
}

// View returns the region's bytes. The engine heap is not addressable by
// the Go runtime, so the view is materialized by a read; callers treat the
// result as read-only. A destroyed view yields an error, an empty region an
// empty slice.
func (b *BufferView) View() ([]byte, error) {
	if b.destroyed {
		return nil, bridgeerrors.New(bridgeerrors.PhaseMemory, bridgeerrors.KindAlreadyUsed).
			Detail("view read after destroy").Build()
	}
	if b.addr == 0 || b.size == 0 {
		return []byte{}, nil
	}
	data, err := b.heap.Read(b.addr, b.size)
	if err != nil {
		return nil, bridgeerrors.New(bridgeerrors.PhaseMemory, bridgeerrors.KindOutOfBounds).
			Cause(err).Detail("engine region unreadable").Build()
	}
	return data, nil
}

// Addr returns the engine address of the region.
func (b *BufferView) Addr() uint64 {
	return b.addr
}

// Len returns the region's byte count.
func (b *BufferView) Len() uint32 {
	return b.size
}

// Destroyed reports whether the region was handed back to the engine.
func (b *BufferView) Destroyed() bool {
	return b.destroyed
}

// Destroy returns the region to the engine. The first call frees; every
// later call is a no-op.
func (b *BufferView) Destroy() {
	if b.destroyed {
		return
	}
	b.destroyed = true
	if b.addr == 0 || b.size == 0 {
		return
	}
	b.heap.Free(b.addr, b.size)
}
