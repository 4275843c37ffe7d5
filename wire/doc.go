// Package wire implements the fixed 32-byte correlation message exchanged
// on the channel-multiplexed delivery path.
//
// The layout is bit-exact and little-endian because frames cross a process
// memory boundary where endianness is not otherwise negotiated:
//
//	 0 ..3   Magic    u32  (0xDABCFE01)
//	 4       Version  u8   (1)
//	 5       DataType u8
//	 6 ..7   Status   u16
//	 8 ..15  TaskID   u64
//	16 ..31  Payload  16 bytes, interpretation keyed by DataType
//
// Bool and u64 payloads embed their value directly; bytes and string
// payloads carry an (address, length) pair referring to engine memory, so
// the frame itself stays at 32 bytes regardless of logical content.
//
// Decode rejects short input, unknown discriminants, and magic or version
// mismatches; an invalid frame is never interpreted further.
package wire
