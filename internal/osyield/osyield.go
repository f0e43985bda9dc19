// Package osyield provides a best-effort OS-thread yield, used by the
// spinlock and yield-aware synchronization primitives when backing off under
// contention. On platforms exposing sched_yield(2) it is used directly;
// elsewhere this falls back to runtime.Gosched.
package osyield

import "runtime"

// Yield relinquishes the calling OS thread to the scheduler, without
// parking the calling goroutine on a channel or timer. It is cheaper than
// time.Sleep for a single contention backoff step.
func Yield() {
	osYield()
}

// Gosched is a thin wrapper over runtime.Gosched, for a caller that wants a
// goroutine-level yield rather than an OS-thread yield; no package in this
// module currently calls it.
func Gosched() {
	runtime.Gosched()
}
