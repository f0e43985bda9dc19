package syncx

import (
	"github.com/bloomberg/quantum-sub000/spinlock"
)

// RWMutex is the yield-aware reader/writer counterpart of Mutex (spec
// §4.8), built directly on spinlock.RWSpinlock — the same packed H/L word
// and upgrade protocol, with spinning in LockRead/LockWrite replaced by
// Yielder.Yield calls so a blocked coroutine suspends instead of
// busy-spinning its worker (Upgrade differs, see its doc).
type RWMutex struct {
	sp *spinlock.RWSpinlock
}

// NewRWMutex creates an unlocked RWMutex.
func NewRWMutex() *RWMutex {
	return &RWMutex{sp: spinlock.NewRWSpinlock(spinlock.DefaultBackoffConfig())}
}

func resolveYielder(y Yielder) Yielder {
	if y == nil {
		return OSThreadYielder{}
	}
	return y
}

// LockRead acquires a shared (read) lock, yielding via y between attempts.
func (m *RWMutex) LockRead(y Yielder) {
	y = resolveYielder(y)
	for !m.sp.TryLockRead() {
		y.Yield()
	}
}

// TryLockRead attempts to acquire a shared lock without yielding.
func (m *RWMutex) TryLockRead() bool { return m.sp.TryLockRead() }

// UnlockRead releases a shared lock.
func (m *RWMutex) UnlockRead() { m.sp.UnlockRead() }

// LockWrite acquires an exclusive (write) lock, yielding via y between
// attempts.
func (m *RWMutex) LockWrite(y Yielder) {
	y = resolveYielder(y)
	for !m.sp.TryLockWrite() {
		y.Yield()
	}
}

// TryLockWrite attempts to acquire an exclusive lock without yielding.
func (m *RWMutex) TryLockWrite() bool { return m.sp.TryLockWrite() }

// UnlockWrite releases an exclusive lock.
func (m *RWMutex) UnlockWrite() { m.sp.UnlockWrite() }

// Upgrade converts a held read lock into a write lock, per spec §4.1's
// upgrade protocol (fast path when this is the sole reader, slow path
// otherwise). It does not yield via y: spinlock.RWSpinlock.TryUpgrade
// returns only once the write lock is held, and in the slow path it waits
// for the other readers by spinning with its own backoff, which yields the
// OS thread rather than the coroutine.
func (m *RWMutex) Upgrade(y Yielder) {
	y = resolveYielder(y)
	for !m.sp.TryUpgrade() {
		y.Yield()
	}
}

// TryUpgrade performs the upgrade without calling a Yielder; like Upgrade
// it returns only once the write lock is held, so it always reports true.
func (m *RWMutex) TryUpgrade() bool { return m.sp.TryUpgrade() }

// NumReaders reports the current reader count.
func (m *RWMutex) NumReaders() int { return m.sp.NumReaders() }

// NumPendingWriters reports the number of pending upgrades (readers that
// have registered to become the writer and are waiting for other readers to
// drain); writers in LockWrite and a writer holding the lock are not counted.
func (m *RWMutex) NumPendingWriters() int { return m.sp.NumPendingWriters() }

// IsLocked reports whether any reader or writer currently holds the lock.
func (m *RWMutex) IsLocked() bool { return m.sp.IsLocked() }
