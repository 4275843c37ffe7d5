package memory

import (
	stderrors "errors"
	"fmt"
	"testing"

	bridgeerrors "github.com/quiclink/quicbridge/errors"
)

// fakeHeap hands out sequential addresses and records every free so tests
// can assert order and exactly-once release.
type fakeHeap struct {
	regions map[uint64][]byte
	frees   []uint64
	next    uint64
	failing bool
}

func newFakeHeap() *fakeHeap {
	return &fakeHeap{regions: make(map[uint64][]byte), next: 0x1000}
}

func (h *fakeHeap) Alloc(size uint32) (uint64, error) {
	if h.failing {
		return 0, fmt.Errorf("heap exhausted")
	}
	addr := h.next
	h.next += uint64(size) + 16
	h.regions[addr] = make([]byte, size)
	return addr, nil
}

func (h *fakeHeap) Free(addr uint64, size uint32) {
	h.frees = append(h.frees, addr)
	if region, ok := h.regions[addr]; !ok {
		panic(fmt.Sprintf("double free of %#x", addr))
	} else if uint32(len(region)) != size {
		panic(fmt.Sprintf("free of %#x with size %d, allocated %d", addr, size, len(region)))
	}
	delete(h.regions, addr)
}

func (h *fakeHeap) Read(addr uint64, length uint32) ([]byte, error) {
	region, ok := h.regions[addr]
	if !ok || uint32(len(region)) < length {
		return nil, fmt.Errorf("read of unmapped region %#x", addr)
	}
	return append([]byte(nil), region[:length]...), nil
}

func (h *fakeHeap) Write(addr uint64, data []byte) error {
	region, ok := h.regions[addr]
	if !ok || len(region) < len(data) {
		return fmt.Errorf("write to unmapped region %#x", addr)
	}
	copy(region, data)
	return nil
}

func TestArena_ReverseOrderRelease(t *testing.T) {
	heap := newFakeHeap()
	arena := NewArena(heap)

	a, err := arena.Allocate(16)
	if err != nil {
		t.Fatalf("allocate A: %v", err)
	}
	b, err := arena.Allocate(32)
	if err != nil {
		t.Fatalf("allocate B: %v", err)
	}

	var order []string
	arena.DeferRelease(func() { order = append(order, "first") })
	arena.DeferRelease(func() { order = append(order, "second") })

	arena.ReleaseAll(false)

	// Deferred cleanups run in reverse of registration.
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Errorf("defer order = %v", order)
	}
	// B freed before A, and nothing remains tracked.
	if len(heap.frees) != 2 || heap.frees[0] != b || heap.frees[1] != a {
		t.Errorf("free order = %#v, want [%#x %#x]", heap.frees, b, a)
	}
	if arena.Len() != 0 {
		t.Errorf("arena still tracks %d allocations", arena.Len())
	}
}

func TestArena_ReleaseIdempotent(t *testing.T) {
	heap := newFakeHeap()
	arena := NewArena(heap)

	if _, err := arena.Allocate(64); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	arena.ReleaseAll(false)
	// The fake heap panics on double free, so a second call proves the
	// no-op directly.
	arena.ReleaseAll(false)

	if len(heap.frees) != 1 {
		t.Errorf("%d frees, want 1", len(heap.frees))
	}
}

func TestArena_AllocateAfterFinalRelease(t *testing.T) {
	arena := NewArena(newFakeHeap())
	arena.ReleaseAll(false)

	_, err := arena.Allocate(8)
	want := &bridgeerrors.Error{Phase: bridgeerrors.PhaseMemory, Kind: bridgeerrors.KindArenaReleased}
	if !stderrors.Is(err, want) {
		t.Fatalf("error %v, want arena_released", err)
	}
	if !arena.Released() {
		t.Error("arena not marked released")
	}
}

func TestArena_ReuseKeepsArenaAlive(t *testing.T) {
	heap := newFakeHeap()
	arena := NewArena(heap)

	if _, err := arena.Allocate(8); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	arena.ReleaseAll(true)

	if _, err := arena.Allocate(8); err != nil {
		t.Fatalf("allocate after reusable release: %v", err)
	}
	arena.ReleaseAll(false)

	if len(heap.regions) != 0 {
		t.Errorf("%d regions leaked", len(heap.regions))
	}
}

func TestArena_InvalidSizeAndFailure(t *testing.T) {
	heap := newFakeHeap()
	arena := NewArena(heap)

	if _, err := arena.Allocate(0); err == nil {
		t.Error("zero-byte allocation accepted")
	}

	heap.failing = true
	_, err := arena.Allocate(8)
	want := &bridgeerrors.Error{Phase: bridgeerrors.PhaseMemory, Kind: bridgeerrors.KindAllocation}
	if !stderrors.Is(err, want) {
		t.Errorf("error %v, want allocation", err)
	}
	if arena.Len() != 0 {
		t.Error("failed allocation was tracked")
	}
}

func TestTracked_FreeIsSizePaired(t *testing.T) {
	heap := newFakeHeap()
	tracked := NewTracked(heap)

	addr, err := tracked.Allocate(48)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if size, ok := tracked.Size(addr); !ok || size != 48 {
		t.Errorf("size = (%d, %v), want (48, true)", size, ok)
	}

	// The fake heap panics on a size mismatch, so completing Free proves
	// the original byte count came back.
	tracked.Free(addr)
	if tracked.Tracked() != 0 {
		t.Errorf("%d allocations still tracked", tracked.Tracked())
	}
}

func TestTracked_UntrackedFreeIsNoOp(t *testing.T) {
	heap := newFakeHeap()
	tracked := NewTracked(heap)

	addr, err := tracked.Allocate(16)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	// An address this allocator never returned: no panic, no map change.
	tracked.Free(0xDEAD0000)
	if tracked.Tracked() != 1 {
		t.Errorf("untracked free altered the map: %d tracked", tracked.Tracked())
	}

	// Double free is equally a no-op.
	tracked.Free(addr)
	tracked.Free(addr)
	if len(heap.frees) != 1 {
		t.Errorf("%d engine frees, want 1", len(heap.frees))
	}
}

func TestTracked_RejectsZeroSize(t *testing.T) {
	tracked := NewTracked(newFakeHeap())
	_, err := tracked.Allocate(0)
	want := &bridgeerrors.Error{Phase: bridgeerrors.PhaseMemory, Kind: bridgeerrors.KindInvalidSize}
	if !stderrors.Is(err, want) {
		t.Fatalf("error %v, want invalid_size", err)
	}
}

func TestBufferView_ReadAndDestroy(t *testing.T) {
	heap := newFakeHeap()
	addr, _ := heap.Alloc(4)
	heap.Write(addr, []byte{1, 2, 3, 4})

	view := Wrap(heap, addr, 4)
	data, err := view.View()
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if len(data) != 4 || data[0] != 1 || data[3] != 4 {
		t.Errorf("view = %v", data)
	}

	view.Destroy()
	if !view.Destroyed() {
		t.Error("view not marked destroyed")
	}
	// Second destroy must not reach the engine (fake heap would panic).
	view.Destroy()
	if len(heap.frees) != 1 {
		t.Errorf("%d frees, want 1", len(heap.frees))
	}

	if _, err := view.View(); err == nil {
		t.Error("view after destroy succeeded")
	}
}

func TestBufferView_EmptyRegions(t *testing.T) {
	heap := newFakeHeap()

	for _, view := range []*BufferView{
		Wrap(heap, 0, 16),   // null address
		Wrap(heap, 0x10, 0), // zero length
	} {
		data, err := view.View()
		if err != nil {
			t.Fatalf("empty view errored: %v", err)
		}
		if len(data) != 0 {
			t.Errorf("empty view returned %d bytes", len(data))
		}
		// Destroy on an empty view never reaches the engine.
		view.Destroy()
	}
	if len(heap.frees) != 0 {
		t.Errorf("empty views freed %d regions", len(heap.frees))
	}
}
