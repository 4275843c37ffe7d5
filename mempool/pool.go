package mempool

import (
	"fmt"
	"sync"
)

// Block classes, smallest to largest. Requests above the largest class are
// served directly, outside the recycling lists.
var classSizes = [...]uint32{32, 128, 512, 4096, 16384, 65536}

const numClasses = len(classSizes)

// Config bounds the per-class free lists. Zero means the class default;
// a negative capacity disables recycling for that class entirely.
type Config struct {
	Tiny   int // 32B blocks, default 20
	Small  int // 128B blocks, default 20
	Medium int // 512B blocks, default 20
	Large  int // 4KB blocks, default 10
	Huge   int // 16KB blocks, default 10
	XLarge int // 64KB blocks, default 5
}

var defaultCaps = [numClasses]int{20, 20, 20, 10, 10, 5}

func (c Config) caps() [numClasses]int {
	fields := [numClasses]int{c.Tiny, c.Small, c.Medium, c.Large, c.Huge, c.XLarge}
	var caps [numClasses]int
	for i, f := range fields {
		switch {
		case f < 0:
			caps[i] = 0
		case f == 0:
			caps[i] = defaultCaps[i]
		default:
			caps[i] = f
		}
	}
	return caps
}

// classFor returns the class index for a request, or -1 for oversize.
func classFor(size uint32) int {
	for i, cs := range classSizes {
		if size <= cs {
			return i
		}
	}
	return -1
}

// Stats is a point-in-time snapshot of pool activity.
type Stats struct {
	Hits        uint64 // class requests served from a free list
	Carves      uint64 // class requests served by carving new blocks
	Direct      uint64 // oversize requests served directly
	Recycled    uint64 // blocks returned to a free list
	Dropped     uint64 // freed blocks a full list could not take back
	HeapBytes   uint64 // total bytes carved from the linear heap
	LiveClasses [numClasses]int
}

// Pool is the allocator. The zero value is not usable; construct with New.
type Pool struct {
	mu    sync.Mutex
	mem   []byte
	free  [numClasses][]uint64
	caps  [numClasses]int
	live  map[uint64]uint32 // addr -> allocated size, class and direct alike
	stats Stats
}

// heapBase keeps address 0 invalid, matching the boundary convention that a
// null address is never a live allocation.
const heapBase = 64

// New creates a pool with the given free-list capacities.
func New(cfg Config) *Pool {
	return &Pool{
		mem:  make([]byte, heapBase),
		caps: cfg.caps(),
		live: make(map[uint64]uint32),
	}
}

// Alloc returns the engine address of a zeroed region of at least size
// bytes. Size zero is rejected.
func (p *Pool) Alloc(size uint32) (uint64, error) {
	if size == 0 {
		return 0, fmt.Errorf("mempool: zero-byte allocation")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cls := classFor(size)
	if cls >= 0 {
		if list := p.free[cls]; len(list) > 0 {
			addr := list[len(list)-1]
			p.free[cls] = list[:len(list)-1]
			block := p.mem[addr : addr+uint64(classSizes[cls])]
			clear(block)
			p.live[addr] = size
			p.stats.Hits++
			p.stats.LiveClasses[cls]++
			return addr, nil
		}
		addr := p.carve(classSizes[cls])
		p.live[addr] = size
		p.stats.Carves++
		p.stats.LiveClasses[cls]++
		return addr, nil
	}

	addr := p.carve(size)
	p.live[addr] = size
	p.stats.Direct++
	return addr, nil
}

// carve extends the linear heap by size bytes. Caller holds the lock.
func (p *Pool) carve(size uint32) uint64 {
	addr := uint64(len(p.mem))
	p.mem = append(p.mem, make([]byte, size)...)
	p.stats.HeapBytes += uint64(size)
	return addr
}

// Free returns a region to the pool. The size must be the byte count the
// address was allocated with; that invariant is the caller's (the bridge's
// ownership layer always stores the pair together). Freeing an address that
// is not live is a no-op.
func (p *Pool) Free(addr uint64, size uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	allocated, ok := p.live[addr]
	if !ok || allocated != size {
		return
	}
	delete(p.live, addr)

	cls := classFor(size)
	if cls < 0 {
		// Direct allocation; the heap space is simply retired.
		return
	}
	p.stats.LiveClasses[cls]--
	if len(p.free[cls]) >= p.caps[cls] {
		p.stats.Dropped++
		return
	}
	p.free[cls] = append(p.free[cls], addr)
	p.stats.Recycled++
}

// Read copies length bytes starting at addr.
func (p *Pool) Read(addr uint64, length uint32) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	end := addr + uint64(length)
	if addr < heapBase || end > uint64(len(p.mem)) {
		return nil, fmt.Errorf("mempool: read out of bounds addr=%#x len=%d heap=%d", addr, length, len(p.mem))
	}
	return append([]byte(nil), p.mem[addr:end]...), nil
}

// Write copies data into the heap at addr.
func (p *Pool) Write(addr uint64, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	end := addr + uint64(len(data))
	if addr < heapBase || end > uint64(len(p.mem)) {
		return fmt.Errorf("mempool: write out of bounds addr=%#x len=%d heap=%d", addr, len(data), len(p.mem))
	}
	copy(p.mem[addr:end], data)
	return nil
}

// Live returns the number of live allocations.
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
