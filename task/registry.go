package task

import (
	bridgeerrors "github.com/quiclink/quicbridge/errors"
	"github.com/quiclink/quicbridge/wire"
)

// Result is the decoded outcome of one operation. Exactly one of the two
// holds: a valid message on success (or lifecycle events), or a typed error
// for engine-reported and attributable decode failures.
type Result struct {
	Msg wire.Message
	Err error
}

// Failed reports whether the result is a failure.
func (r Result) Failed() bool {
	return r.Err != nil || r.Msg.IsError()
}

// Bool extracts a boolean payload.
func (r Result) Bool() (bool, bool) {
	p, ok := r.Msg.Payload.(wire.Bool)
	return p.Value, ok
}

// U64 extracts a 64-bit payload.
func (r Result) U64() (uint64, bool) {
	p, ok := r.Msg.Payload.(wire.U64)
	return p.Value, ok
}

// Bytes extracts a bytes-reference payload. The caller owns the referenced
// engine memory and must free it, usually by wrapping it in a buffer view.
func (r Result) Bytes() (addr, length uint64, ok bool) {
	p, pok := r.Msg.Payload.(wire.BytesRef)
	return p.Addr, p.Len, pok
}

// Continuation consumes one result. A continuation runs on the dispatch
// goroutine and must not block it.
type Continuation func(Result)

// Registry tracks pending operations by task identifier. Not safe for
// concurrent use; see the package comment.
type Registry struct {
	pending map[uint64]Continuation
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{pending: make(map[uint64]Continuation)}
}

// Register stores the continuation for a task identifier. The submitter
// controls identifiers and must not reuse a live one; registering over an
// existing entry is rejected and the existing continuation is left in place,
// so an id-reuse bug surfaces at the second caller instead of stranding the
// first.
func (r *Registry) Register(taskID uint64, c Continuation) error {
	if c == nil {
		return bridgeerrors.New(bridgeerrors.PhaseDispatch, bridgeerrors.KindNotRegistered).
			Task(taskID).Detail("nil continuation").Build()
	}
	if _, exists := r.pending[taskID]; exists {
		return bridgeerrors.New(bridgeerrors.PhaseDispatch, bridgeerrors.KindDuplicateTask).
			Task(taskID).Detail("task id is already registered").Build()
	}
	r.pending[taskID] = c
	return nil
}

// Resolve removes the continuation for taskID and invokes it with the
// result. It reports whether a continuation was found; a false return means
// the result belongs to an already-resolved or never-registered id and the
// caller should drop it. Remove-before-invoke is what makes resolution
// at-most-once even if a second frame arrives for the same id.
func (r *Registry) Resolve(taskID uint64, res Result) bool {
	c, ok := r.pending[taskID]
	if !ok {
		return false
	}
	delete(r.pending, taskID)
	c(res)
	return true
}

// Len returns the number of outstanding operations.
func (r *Registry) Len() int {
	return len(r.pending)
}
