// Package bridge is the narrow surface callers consume: submit a command,
// allocate and free engine memory, wrap a result region, decode a frame.
//
// A Bridge owns the single dispatch goroutine that forms the caller-side
// concurrency domain. Engine workers post completion frames and per-call
// invocations through the functions registered at construction; the
// dispatch goroutine decodes them and resolves the matching pending
// operation or trampoline. Because every piece of bookkeeping (registry,
// trampoline table, tracked allocator, per-call arenas) is touched only by
// that goroutine, none of it needs a lock.
//
// Failing to construct the bridge before the first asynchronous use is the
// one fatal error class here: New refuses to hand out a partially
// configured bridge if either boundary registration fails.
//
// There is no timeout. A submission the engine never answers stays pending
// for the life of the process, and its input arena stays allocated. Callers
// needing bounded waits layer them above the bridge.
package bridge
