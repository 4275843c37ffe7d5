// Package mempool is a size-class block allocator over a linear heap. It
// backs in-process engines: the addresses it hands out are engine addresses
// in the bridge's sense, satisfying the root package's Heap contract with
// the same size-paired free discipline a native engine allocator has.
//
// Requests are rounded up to one of six block classes (32B, 128B, 512B,
// 4KB, 16KB, 64KB); freed blocks are recycled through a per-class free list
// bounded by a configurable capacity, and anything over 64KB bypasses the
// classes entirely. Recycled blocks are zeroed before reuse.
//
// Unlike the bridge's caller-side bookkeeping, the pool is shared between
// engine workers and the dispatch domain, so it locks internally.
package mempool
