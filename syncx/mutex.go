package syncx

import (
	"sync/atomic"

	"github.com/bloomberg/quantum-sub000/spinlock"
)

// Mutex is a yield-aware exclusive lock (spec §4.8). Unlike sync.Mutex, a
// blocked caller does not park the OS thread: each attempt is a single
// TryLock on an internal spinlock.Spinlock, and between attempts it calls
// the supplied Yielder, handing control back to whatever drives the caller (a
// TaskQueue's scheduler for a coroutine, the OS scheduler for a plain
// goroutine) between attempts.
//
// Reentrance is not supported (spec §4.8): locking from the same taskID
// that already holds the Mutex deadlocks deterministically, exactly as the
// caller would experience with a non-recursive native mutex.
type Mutex struct {
	sp    *spinlock.Spinlock
	owner atomic.Int64 // 0 == unlocked; otherwise the taskID holding the lock
}

// NewMutex creates an unlocked Mutex.
func NewMutex() *Mutex {
	return &Mutex{sp: spinlock.NewSpinlock(spinlock.DefaultBackoffConfig())}
}

// TryLock attempts to acquire the Mutex without yielding, returning false
// if it is already held.
func (m *Mutex) TryLock(taskID int64) bool {
	if !m.sp.TryLock() {
		return false
	}
	m.owner.Store(taskID)
	return true
}

// Lock acquires the Mutex, yielding the caller via y between attempts
// instead of spinning the worker to exhaustion. y may be nil, in which case
// OSThreadYielder is used.
func (m *Mutex) Lock(taskID int64, y Yielder) {
	if y == nil {
		y = OSThreadYielder{}
	}
	for !m.TryLock(taskID) {
		y.Yield()
	}
}

// Unlock releases the Mutex. Panics if not held, matching
// spinlock.Spinlock's own contract.
func (m *Mutex) Unlock() {
	m.owner.Store(0)
	m.sp.Unlock()
}

// IsLocked reports whether the Mutex is currently held.
func (m *Mutex) IsLocked() bool { return m.sp.IsLocked() }

// Owner returns the taskID currently holding the Mutex, or 0 if unlocked.
func (m *Mutex) Owner() int64 { return m.owner.Load() }
