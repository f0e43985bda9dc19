// Package spinlock implements the exclusive and reader/writer spinlocks
// described by spec §4.1: short-critical-section mutual exclusion with
// bounded, configurable backoff, built on a cache-line-padded atomic word.
//
// These are building blocks, not user-facing synchronization: callers that
// may suspend a coroutine task belong in package syncx, which is built atop
// Spinlock and RWSpinlock.
package spinlock

import "sync/atomic"

const (
	free   int32 = 0
	locked int32 = -1
)

// Spinlock is an exclusive spinlock backed by a single atomic word: 0 when
// free, -1 when held. It has no notion of ownership beyond held/free, and is
// not reentrant.
//
// Cache-line padding (64 bytes on each side of the hot word) prevents false
// sharing with neighboring fields, mirroring the padded atomic state word in
// the teacher's FastState.
type Spinlock struct { // betteralign:ignore
	_ [64]byte
	v atomic.Int32
	_ [60]byte

	backoff BackoffConfig
}

// NewSpinlock creates a free Spinlock using cfg for contention backoff. A
// zero BackoffConfig is replaced with [DefaultBackoffConfig].
func NewSpinlock(cfg BackoffConfig) *Spinlock {
	if cfg.MinSpins == 0 && cfg.MaxSpins == 0 {
		cfg = DefaultBackoffConfig()
	}
	s := &Spinlock{backoff: cfg}
	s.v.Store(free)
	return s
}

// TryLock attempts to acquire the lock without spinning, preceded by a
// plain load (test-and-test-and-set) to avoid needlessly contending the
// cache line with a compare-exchange when the lock is visibly held.
func (s *Spinlock) TryLock() bool {
	if s.v.Load() != free {
		return false
	}
	return s.v.CompareAndSwap(free, locked)
}

// Lock blocks, spinning with bounded backoff, until the lock is acquired.
func (s *Spinlock) Lock() {
	if s.TryLock() {
		return
	}
	b := newBackoff(s.backoff)
	for !s.TryLock() {
		b.spin()
	}
}

// Unlock releases the lock. Unlocking a free lock is a programmer error and
// panics, matching the "internal errors are fatal" policy of spec §7.
func (s *Spinlock) Unlock() {
	if !s.v.CompareAndSwap(locked, free) {
		panic("spinlock: unlock of unlocked spinlock")
	}
}

// IsLocked reports whether the lock is currently held. Intended for tests
// and diagnostics; the result may be stale by the time it is observed.
func (s *Spinlock) IsLocked() bool {
	return s.v.Load() == locked
}
