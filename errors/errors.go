package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the bridge the error occurred
type Phase string

const (
	PhaseDecode   Phase = "decode"   // wire message decoding
	PhaseDispatch Phase = "dispatch" // completion routing
	PhaseSubmit   Phase = "submit"   // command submission
	PhaseMemory   Phase = "memory"   // arena / tracked allocator
	PhaseSetup    Phase = "setup"    // one-time boundary configuration
	PhaseEngine   Phase = "engine"   // failure reported by the engine
)

// Kind categorizes the error
type Kind string

const (
	KindShortMessage    Kind = "short_message"
	KindBadMagic        Kind = "bad_magic"
	KindVersionMismatch Kind = "version_mismatch"
	KindUnknownDataType Kind = "unknown_data_type"
	KindUnknownStatus   Kind = "unknown_status"
	KindDuplicateTask   Kind = "duplicate_task"
	KindArenaReleased   Kind = "arena_released"
	KindInvalidSize     Kind = "invalid_size"
	KindOutOfBounds     Kind = "out_of_bounds"
	KindAllocation      Kind = "allocation"
	KindNotRegistered   Kind = "not_registered"
	KindAlreadyUsed     Kind = "already_used"
	KindEngineFailure   Kind = "engine_failure"
	KindShutdown        Kind = "shutdown"
)

// Error is the structured error type used throughout the bridge. TaskID is
// the correlation identifier of the operation the error belongs to, when one
// could be attributed; HasTask distinguishes task id 0 from no task at all.
type Error struct {
	Cause   error
	Phase   Phase
	Kind    Kind
	Detail  string
	TaskID  uint64
	HasTask bool
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.HasTask {
		fmt.Fprintf(&b, " task=%d", e.TaskID)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Task attributes the error to a task identifier
func (b *Builder) Task(id uint64) *Builder {
	b.err.TaskID = id
	b.err.HasTask = true
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// ShortMessage creates a decode error for wire data below the fixed size
func ShortMessage(got, want int) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindShortMessage,
		Detail: fmt.Sprintf("message is %d bytes, need %d", got, want),
	}
}

// BadMagic creates a decode error for a magic number mismatch
func BadMagic(got, want uint32) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindBadMagic,
		Detail: fmt.Sprintf("magic 0x%08X, expected 0x%08X", got, want),
	}
}

// VersionMismatch creates a decode error for an unsupported protocol version
func VersionMismatch(got, want uint8) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindVersionMismatch,
		Detail: fmt.Sprintf("version %d, expected %d", got, want),
	}
}

// UnknownDiscriminant creates a decode error for an out-of-range enum value
func UnknownDiscriminant(kind Kind, value uint64) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   kind,
		Detail: fmt.Sprintf("discriminant 0x%X is not defined by the protocol", value),
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(size uint32, cause error) *Error {
	return &Error{
		Phase:  PhaseMemory,
		Kind:   KindAllocation,
		Cause:  cause,
		Detail: fmt.Sprintf("failed to allocate %d bytes from the engine heap", size),
	}
}

// EngineFailure wraps an engine-reported error message for a task
func EngineFailure(taskID uint64, msg string) *Error {
	return &Error{
		Phase:   PhaseEngine,
		Kind:    KindEngineFailure,
		Detail:  msg,
		TaskID:  taskID,
		HasTask: true,
	}
}
