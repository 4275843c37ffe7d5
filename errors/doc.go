// Package errors provides structured error types for the bridge.
//
// Every error carries a Phase (where in the bridge it happened) and a Kind
// (what went wrong), and optionally the task identifier it could be
// attributed to. Two errors match under errors.Is when their Phase and Kind
// match, so callers can test for a category without string comparison:
//
//	if errors.Is(err, &bridgeerrors.Error{Phase: bridgeerrors.PhaseMemory, Kind: bridgeerrors.KindArenaReleased}) {
//	    // allocation attempted after final release
//	}
package errors
