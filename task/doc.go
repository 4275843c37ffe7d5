// Package task correlates asynchronous command submissions with their
// eventual results by 64-bit task identifier.
//
// The registry maps each outstanding identifier to a one-shot continuation
// and removes the entry when the matching result arrives, so a single
// identifier resolves at most once. Results for unknown identifiers are
// dropped by the caller: the engine may legitimately deliver out-of-band
// frames for ids the registry never tracked.
//
// All registry mutation happens on the bridge's single dispatch goroutine,
// which is why the registry carries no lock. It is not safe for concurrent
// use from multiple goroutines.
package task
