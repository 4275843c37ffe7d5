// Package trampoline implements the per-call delivery mechanism: single-use
// adapters that turn one engine completion notification into one local
// completion, for calls that own a private notification instead of sharing
// the task-id channel.
//
// A trampoline is created immediately before the engine call it guards and
// is invoked at most once. Invocation removes it from the table, so the
// registration cannot fire twice; if the engine never calls back, the
// registration stays allocated for the life of the process, which mirrors
// the no-timeout contract of the rest of the bridge.
//
// Handlers come in five fixed shapes: void, bool, u64, f64 and bytes. The
// engine's completion signature always carries a success flag and, on
// failure, an address/length pair locating a UTF-8 error message in engine
// memory; the table decodes that message and surfaces it as a typed error,
// never as raw bytes.
//
// Like the task registry, the table is mutated only on the dispatch
// goroutine and carries no lock.
package trampoline
