// Package syncx implements the yield-aware synchronization primitives of
// spec §4.8: a Mutex, CondVar and RWMutex that suspend the calling task
// (coroutine or OS thread) instead of blocking the worker that runs it.
// They deliberately do not build on sync.Mutex/sync.Cond (spec §9 design
// note: "do not reuse the host OS mutex"), since doing so would block the
// worker goroutine the caller's coroutine slot shares with other tasks.
package syncx

import (
	"github.com/bloomberg/quantum-sub000/internal/osyield"
)

// Yielder abstracts "yield to the worker" (a suspended coroutine) vs
// "yield the OS thread" (a plain goroutine/I/O task), per spec §9's design
// note that suspension-aware primitives must choose between the two based
// on whether the caller is a coroutine. dispatcher.Context implements this
// by delegating to its internal coro.Handle when running on a coroutine
// slot; OSThreadYielder is used otherwise.
type Yielder interface {
	// Yield suspends the caller, returning control to whatever drives it
	// (a TaskQueue scheduler for a coroutine, or just the OS scheduler for
	// a plain thread), and later resumes it.
	Yield()
}

// OSThreadYielder implements Yielder by yielding the OS thread
// (sched_yield), for callers not running inside a coroutine slot — e.g. an
// I/O worker or a caller outside the dispatcher entirely.
type OSThreadYielder struct{}

// Yield implements Yielder.
func (OSThreadYielder) Yield() { osyield.Yield() }

// YielderFunc adapts a plain function to the Yielder interface.
type YielderFunc func()

// Yield implements Yielder.
func (f YielderFunc) Yield() { f() }
