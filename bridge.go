package quicbridge

import "context"

// Command identifies an engine operation. The meaning of each value is
// defined by the engine; the bridge only carries it across the boundary.
type Command uint8

// PostFunc delivers one 32-byte completion frame from an engine worker into
// the caller's dispatch domain. Implementations must be safe to call from
// any goroutine and must enqueue the frame and return without blocking on
// caller-side work; no registry or allocator code runs inside the post.
type PostFunc func(frame [32]byte)

// InvokeFunc delivers one per-call completion for a trampoline-mode
// submission. token identifies the trampoline created for the call. On
// success the result is in value (void/bool/u64/f64 shapes, f64 as IEEE bits)
// or at dataAddr/dataLen in engine memory (bytes shape). On failure errAddr
// and errLen locate a UTF-8 error message in engine memory. Like PostFunc,
// implementations marshal into the dispatch domain and return.
type InvokeFunc func(token uint64, success bool, value uint64, dataAddr uint64, dataLen uint32, errAddr uint64, errLen uint32)

// Memory is read/write access to the engine's heap. Addresses are engine
// addresses and mean nothing to the Go allocator; the two heaps never mix.
type Memory interface {
	Read(addr uint64, length uint32) ([]byte, error)
	Write(addr uint64, data []byte) error
}

// Allocator allocates in the engine's heap. The free contract is size-paired:
// Free must receive the exact byte count the address was allocated with. The
// allocator is not self-describing, so whoever holds an address must hold its
// size alongside it.
type Allocator interface {
	Alloc(size uint32) (uint64, error)
	Free(addr uint64, size uint32)
}

// Heap is the engine's memory surface: addressable and allocatable.
type Heap interface {
	Memory
	Allocator
}

// Engine is the boundary contract the bridge requires from a QUIC transport
// engine. Handshake, congestion control and stream multiplexing live behind
// it and are invisible here.
type Engine interface {
	Heap

	// RegisterPost installs the cross-boundary post function for the
	// channel-multiplexed path. It must be called exactly once, before the
	// first Submit; a second registration is an error.
	RegisterPost(post PostFunc) error

	// RegisterInvoke installs the delivery function for trampoline-mode
	// completions. Same once-before-first-use rule as RegisterPost.
	RegisterInvoke(invoke InvokeFunc) error

	// Submit queues a command on the channel-multiplexed path. dataAddr and
	// dataLen locate command input in engine memory (zero for none); params
	// are opaque 64-bit arguments. The returned task identifier correlates
	// the eventual wire message with this call.
	Submit(cmd Command, dataAddr uint64, dataLen uint32, params []uint64) (uint64, error)

	// SubmitCallback queues a command whose completion is delivered through
	// the per-call trampoline identified by token instead of the shared
	// channel.
	SubmitCallback(cmd Command, dataAddr uint64, dataLen uint32, token uint64) error

	// Close shuts the engine down. Workers emit a shutdown frame on the
	// post channel before exiting.
	Close(ctx context.Context) error
}
