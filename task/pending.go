package task

import "context"

// Pending is a caller-side handle for one outstanding operation. The bridge
// registers its continuation and hands the Pending back to the submitter,
// which waits on Await.
type Pending struct {
	ch     chan Result
	taskID uint64
}

// NewPending creates a handle for the given task identifier.
func NewPending(taskID uint64) *Pending {
	// Buffer of one lets the dispatch goroutine deliver without waiting for
	// the caller to be parked in Await yet.
	return &Pending{taskID: taskID, ch: make(chan Result, 1)}
}

// TaskID returns the correlation identifier.
func (p *Pending) TaskID() uint64 {
	return p.taskID
}

// Continuation returns the one-shot delivery function the registry invokes.
func (p *Pending) Continuation() Continuation {
	return func(res Result) {
		select {
		case p.ch <- res:
		default:
			// Already delivered. The registry's remove-on-resolve makes this
			// unreachable through normal dispatch.
		}
	}
}

// Await blocks until the result arrives or ctx is done. There is no timeout
// in the bridge itself: an engine that never answers blocks Await until the
// caller's context expires. Abandoning the wait is purely local; the
// registration stays live, and a late result is still delivered into the
// abandoned handle's buffer rather than to the engine as a cancellation.
func (p *Pending) Await(ctx context.Context) (Result, error) {
	select {
	case res := <-p.ch:
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}
