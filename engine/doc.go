// Package engine runs a QUIC executor compiled to WebAssembly inside a
// wazero runtime and adapts it to the bridge's engine contract.
//
// The guest module exports a fixed function table (see names.go): executor
// lifecycle, the two submission paths, and the size-paired allocator pair.
// The host side contributes a single module, "quicbridge", whose two
// functions carry completions back out: post_frame for the 32-byte
// channel-multiplexed frames and invoke_callback for per-call deliveries.
//
// Guest memory is wasm32 linear memory, so every address the bridge sees
// from this engine fits in 32 bits. The adapter serializes all calls into
// the guest; asynchrony is the guest's own affair and reaches the host only
// through the two completion functions.
package engine
