// Package quicbridge bridges a Go caller to an externally-implemented,
// multi-threaded QUIC transport engine consumed through an opaque boundary.
//
// The engine runs its own workers and owns its own heap; the bridge's job is
// to correlate asynchronous command submissions with their eventual results,
// and to make sure every byte of engine memory allocated on behalf of a call
// is released exactly once, regardless of success, failure, or early disposal.
//
// # Architecture Overview
//
// The module is organized into packages with distinct responsibilities:
//
//	quicbridge/          Root package with the Engine boundary interfaces
//	├── wire/            Fixed 32-byte correlation message codec
//	├── task/            Task-id correlation registry and pending operations
//	├── trampoline/      Single-shot per-call completion handlers
//	├── memory/          Ownership arena, tracked allocator, buffer views
//	├── mempool/         Size-class block allocator for in-process engines
//	├── bridge/          The façade callers consume, plus the dispatch loop
//	├── engine/          wazero-backed engine binding
//	├── enginetest/      In-process loopback engine for tests and demos
//	└── errors/          Structured error types for the bridge taxonomy
//
// # Delivery Model
//
// Results reach the caller one of two ways. On the channel-multiplexed path,
// engine workers post 32-byte wire messages carrying a task identifier, and
// the dispatch loop resolves the matching pending operation. On the per-call
// path, a single-shot trampoline registered immediately before the call
// receives exactly one completion and deregisters itself.
//
// All registry, trampoline and allocator state is mutated on one dispatch
// goroutine; engine workers only ever hand frames across through the
// registered post function. That single-domain discipline is what lets the
// bookkeeping run lock-free.
//
// # Quick Start
//
// Drive the in-process loopback engine:
//
//	eng := enginetest.New(nil)
//	b, err := bridge.New(eng)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer b.Close(ctx)
//
//	pending, err := b.Submit(ctx, enginetest.CmdCompute, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := pending.Await(ctx)
//	fmt.Println(res.U64())
//
// There is no timeout anywhere in the bridge: an engine that never answers
// leaves its pending operation pending. Await accepts a context so a caller
// can stop waiting locally, but the engine is never told to cancel.
package quicbridge
