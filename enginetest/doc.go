// Package enginetest provides an in-process engine implementing the
// quicbridge.Engine boundary contract, for tests, examples and the
// inspector's demo mode.
//
// It reproduces the shape of a real native engine without any QUIC: a
// worker goroutine drains a command queue, a pluggable CommandHandler
// produces one of the five result shapes, and completions are posted back
// across the boundary as 32-byte wire frames or per-call invocations. Its
// heap is a mempool.Pool, so every allocation crossing the boundary obeys
// the same size-paired free discipline a native allocator imposes.
//
// Lifecycle follows the original executor: a ready handshake on the
// sentinel task id once the worker is up, command 255 reserved for
// shutdown, and a worker-shutdown broadcast frame as the worker exits.
package enginetest
