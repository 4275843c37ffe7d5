// Package memory makes "every engine allocation has exactly one release
// point" a structural guarantee instead of a convention.
//
// All memory here lives in the engine's heap, never the Go heap; the two
// are never mixed. The engine's free entry point is size-paired — it needs
// the original byte count back — so this package always stores the
// (address, size) pair together and never lets an address escape alone.
//
// Three owners cover the cases:
//
//   - Arena: scoped to one logical call; releases everything it tracked in
//     one bulk operation, running deferred cleanups in reverse order first.
//     After a final (non-reuse) release the arena refuses further
//     allocation, and a repeated release is a no-op rather than a double
//     free.
//   - TrackedAllocator: individually-addressable allocations with a safe
//     no-op on untracked or repeated free. The no-op is defensive double
//     free protection, not something correctness may rely on.
//   - BufferView: a read-only view over an engine region handed to the
//     caller, destroyed exactly once through the engine's free entry point.
//
// Arenas and the tracked allocator are mutated only on the dispatch
// goroutine and carry no lock; an arena additionally belongs to exactly one
// call scope and must not be shared.
package memory
