package wire

// Protocol constants. Both are fixed: a frame with any other magic or
// version is invalid and must not be interpreted.
const (
	Magic   uint32 = 0xDABCFE01
	Version uint8  = 1
)

// Frame sizes in bytes.
const (
	HeaderSize  = 16
	PayloadSize = 16
	Size        = HeaderSize + PayloadSize
)

// SentinelTaskID is reserved for out-of-band frames: the executor-ready
// handshake at startup and the worker-shutdown broadcast at exit. Ordinary
// submissions never use it.
const SentinelTaskID uint64 = 0

// DataType discriminates the payload interpretation. The set is fixed by the
// wire format; extending it requires a protocol version bump.
type DataType uint8

const (
	TypeNone   DataType = 0
	TypeBool   DataType = 1
	TypeU64    DataType = 2
	TypeBytes  DataType = 3
	TypeString DataType = 4
)

// Known reports whether the discriminant is defined by the protocol.
func (d DataType) Known() bool {
	return d <= TypeString
}

func (d DataType) String() string {
	switch d {
	case TypeNone:
		return "none"
	case TypeBool:
		return "bool"
	case TypeU64:
		return "u64"
	case TypeBytes:
		return "bytes"
	case TypeString:
		return "string"
	}
	return "unknown"
}

// TaskStatus reports a task's outcome. Values are partitioned by numeric
// range: 0x0000-0x00FF success, 0x0100-0x01FF lifecycle, 0x9000-0x9FFF
// generic failure, 0xF000-0xFFFF protocol-layer failure.
type TaskStatus uint16

const (
	StatusSuccess         TaskStatus = 0x0000
	StatusSuccessWithData TaskStatus = 0x0001
	StatusWorkerShutdown  TaskStatus = 0x0100
	StatusUnknownError    TaskStatus = 0x9001
	StatusProtocolError   TaskStatus = 0xF001
	StatusVersionMismatch TaskStatus = 0xF002
	StatusCorruptedData   TaskStatus = 0xF003
)

// Known reports whether the discriminant is defined by the protocol.
func (s TaskStatus) Known() bool {
	switch s {
	case StatusSuccess, StatusSuccessWithData, StatusWorkerShutdown,
		StatusUnknownError, StatusProtocolError, StatusVersionMismatch,
		StatusCorruptedData:
		return true
	}
	return false
}

// IsSuccess reports membership in the success family.
func (s TaskStatus) IsSuccess() bool {
	return s <= 0x00FF
}

// IsError reports a failure outcome. Worker shutdown is a lifecycle event,
// not an error.
func (s TaskStatus) IsError() bool {
	return !s.IsSuccess() && s != StatusWorkerShutdown
}

func (s TaskStatus) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSuccessWithData:
		return "success_with_data"
	case StatusWorkerShutdown:
		return "worker_shutdown"
	case StatusUnknownError:
		return "unknown_error"
	case StatusProtocolError:
		return "protocol_error"
	case StatusVersionMismatch:
		return "version_mismatch"
	case StatusCorruptedData:
		return "corrupted_data"
	}
	return "unknown"
}

// Payload is the closed set of payload shapes. Exactly one concrete type
// exists per DataType discriminant.
type Payload interface {
	isPayload()
	// Type returns the discriminant this payload encodes under.
	Type() DataType
}

// None is the empty payload.
type None struct{}

// Bool embeds a boolean result directly in the frame.
type Bool struct {
	Value bool
}

// U64 embeds a 64-bit value directly in the frame. All 64 bits are
// significant, including the top bit.
type U64 struct {
	Value uint64
}

// BytesRef refers to a byte region in engine memory. The frame does not own
// the region; ownership transfers to whoever resolves the task.
type BytesRef struct {
	Addr uint64
	Len  uint64
}

// StringRef refers to UTF-8 text in engine memory, typically an error
// message paired with a failure status.
type StringRef struct {
	Addr uint64
	Len  uint64
}

func (None) isPayload()      {}
func (Bool) isPayload()      {}
func (U64) isPayload()       {}
func (BytesRef) isPayload()  {}
func (StringRef) isPayload() {}

func (None) Type() DataType      { return TypeNone }
func (Bool) Type() DataType      { return TypeBool }
func (U64) Type() DataType       { return TypeU64 }
func (BytesRef) Type() DataType  { return TypeBytes }
func (StringRef) Type() DataType { return TypeString }

// Message is one decoded correlation frame.
type Message struct {
	Payload Payload
	TaskID  uint64
	Magic   uint32
	Status  TaskStatus
	Version uint8
}

// Valid reports whether the frame's magic and version match the protocol
// constants. Decode never returns an invalid message, but a message built by
// hand may be invalid.
func (m Message) Valid() bool {
	return m.Magic == Magic && m.Version == Version
}

// IsSuccess reports whether the message carries a success outcome.
func (m Message) IsSuccess() bool {
	return m.Status.IsSuccess()
}

// IsError reports whether the message carries a failure outcome.
func (m Message) IsError() bool {
	return m.Status.IsError()
}

// NewNoData builds a success frame without result data.
func NewNoData(taskID uint64) Message {
	return Message{
		Magic:   Magic,
		Version: Version,
		Status:  StatusSuccess,
		TaskID:  taskID,
		Payload: None{},
	}
}

// NewBool builds a success frame carrying a boolean result.
func NewBool(taskID uint64, value bool) Message {
	return Message{
		Magic:   Magic,
		Version: Version,
		Status:  StatusSuccessWithData,
		TaskID:  taskID,
		Payload: Bool{Value: value},
	}
}

// NewU64 builds a success frame carrying a 64-bit result.
func NewU64(taskID uint64, value uint64) Message {
	return Message{
		Magic:   Magic,
		Version: Version,
		Status:  StatusSuccessWithData,
		TaskID:  taskID,
		Payload: U64{Value: value},
	}
}

// NewBytes builds a success frame referring to a result region in engine
// memory. The receiver becomes responsible for freeing the region.
func NewBytes(taskID uint64, addr, length uint64) Message {
	return Message{
		Magic:   Magic,
		Version: Version,
		Status:  StatusSuccessWithData,
		TaskID:  taskID,
		Payload: BytesRef{Addr: addr, Len: length},
	}
}

// NewError builds a failure frame whose string payload locates a UTF-8
// error message in engine memory.
func NewError(taskID uint64, status TaskStatus, addr, length uint64) Message {
	return Message{
		Magic:   Magic,
		Version: Version,
		Status:  status,
		TaskID:  taskID,
		Payload: StringRef{Addr: addr, Len: length},
	}
}

// NewShutdown builds the worker-shutdown broadcast frame.
func NewShutdown() Message {
	return Message{
		Magic:   Magic,
		Version: Version,
		Status:  StatusWorkerShutdown,
		TaskID:  SentinelTaskID,
		Payload: None{},
	}
}

// NewReady builds the one-time executor-ready handshake frame.
func NewReady(ok bool) Message {
	return Message{
		Magic:   Magic,
		Version: Version,
		Status:  StatusSuccessWithData,
		TaskID:  SentinelTaskID,
		Payload: Bool{Value: ok},
	}
}
