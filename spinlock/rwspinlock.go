package spinlock

import "sync/atomic"

// RWSpinlock packs pending-upgrade count (high 16 bits) and owner count
// (low 16 bits, signed) into a single atomic 32-bit word, exactly as spec
// §4.1 describes:
//
//	H,L  ->  H (pending upgrades), L (0 = free, >0 = reader count, -1 = writer)
//
// State transitions (see spec §4.1 for the full table):
//
//	Read lock:    H,L   -> H,L+1     (H=0, L>=0)
//	Read unlock:  H,L   -> H,L-1     (L>=1)
//	Write lock:   H,0   -> H,-1      (H>=0)
//	Write unlock: H,-1  -> H,0
//	Upgrade fast: H,1   -> H,-1      (only reader)
//	Upgrade slow: H,L   -> H+1,L-1, then H+1,0 -> H,-1
type RWSpinlock struct { // betteralign:ignore
	_ [64]byte
	v atomic.Uint32
	_ [60]byte

	backoff BackoffConfig
}

const (
	lowMask uint32 = 0x0000ffff
)

func split(word uint32) (h int32, l int32) {
	h = int32(word >> 16)
	l = int32(int16(word & lowMask)) //nolint:gosec // intentional truncation to int16
	return
}

func pack(h, l int32) uint32 {
	return (uint32(h) << 16) | (uint32(int16(l)) & lowMask) //nolint:gosec
}

// NewRWSpinlock creates a free RWSpinlock using cfg for contention backoff.
func NewRWSpinlock(cfg BackoffConfig) *RWSpinlock {
	if cfg.MinSpins == 0 && cfg.MaxSpins == 0 {
		cfg = DefaultBackoffConfig()
	}
	return &RWSpinlock{backoff: cfg}
}

// TryLockRead attempts to acquire a reader lock without spinning. Fails if
// any writer holds the lock, or an upgrade is pending (H>0): pending writers
// get priority over new readers, preventing writer starvation.
func (s *RWSpinlock) TryLockRead() bool {
	for {
		word := s.v.Load()
		h, l := split(word)
		if h != 0 || l < 0 {
			return false
		}
		if s.v.CompareAndSwap(word, pack(h, l+1)) {
			return true
		}
	}
}

// LockRead blocks until a reader lock is acquired.
func (s *RWSpinlock) LockRead() {
	if s.TryLockRead() {
		return
	}
	b := newBackoff(s.backoff)
	for !s.TryLockRead() {
		b.spin()
	}
}

// UnlockRead releases one reader lock.
func (s *RWSpinlock) UnlockRead() {
	for {
		word := s.v.Load()
		h, l := split(word)
		if l < 1 {
			panic("spinlock: read-unlock without a held reader lock")
		}
		if s.v.CompareAndSwap(word, pack(h, l-1)) {
			return
		}
	}
}

// TryLockWrite attempts to acquire the writer lock without spinning.
func (s *RWSpinlock) TryLockWrite() bool {
	word := s.v.Load()
	h, l := split(word)
	if l != 0 {
		return false
	}
	return s.v.CompareAndSwap(word, pack(h, -1))
}

// LockWrite blocks until the writer lock is acquired.
func (s *RWSpinlock) LockWrite() {
	if s.TryLockWrite() {
		return
	}
	b := newBackoff(s.backoff)
	for !s.TryLockWrite() {
		b.spin()
	}
}

// UnlockWrite releases the writer lock.
func (s *RWSpinlock) UnlockWrite() {
	word := s.v.Load()
	h, l := split(word)
	if l != -1 {
		panic("spinlock: write-unlock without a held writer lock")
	}
	if !s.v.CompareAndSwap(word, pack(h, 0)) {
		panic("spinlock: concurrent mutation during write-unlock")
	}
}

// TryUpgrade promotes a held reader lock to a writer lock. If exactly one
// reader is held (by the caller), the upgrade happens immediately (H,1 ->
// H,-1). Otherwise it registers a pending upgrade (H,L -> H+1,L-1) and then
// spins, with backoff, in finishUpgrade until the other readers drain. It
// returns true once the writer lock is held; it never returns false.
func (s *RWSpinlock) TryUpgrade() bool {
	for {
		word := s.v.Load()
		h, l := split(word)
		if l < 1 {
			panic("spinlock: upgrade without a held reader lock")
		}
		if l == 1 {
			if s.v.CompareAndSwap(word, pack(h, -1)) {
				return true
			}
			continue
		}
		// Slow path: register the pending upgrade exactly once, then fall
		// through to finishUpgrade's spin loop.
		if s.v.CompareAndSwap(word, pack(h+1, l-1)) {
			s.finishUpgrade()
			return true
		}
	}
}

// Upgrade blocks until a held reader lock is promoted to a writer lock.
func (s *RWSpinlock) Upgrade() {
	s.TryUpgrade()
}

// finishUpgrade spins until the reader count drains to zero (this caller's
// pending-upgrade slot, H, has already been reserved), then converts the
// reservation into a held writer lock: H+1,0 -> H,-1.
func (s *RWSpinlock) finishUpgrade() {
	b := newBackoff(s.backoff)
	for {
		word := s.v.Load()
		h, l := split(word)
		if l == 0 {
			if s.v.CompareAndSwap(word, pack(h-1, -1)) {
				return
			}
			continue
		}
		b.spin()
	}
}

// NumReaders returns the current reader count (0 if free or write-locked).
func (s *RWSpinlock) NumReaders() int {
	_, l := split(s.v.Load())
	if l < 0 {
		return 0
	}
	return int(l)
}

// NumPendingWriters returns the number of in-flight upgrade reservations.
func (s *RWSpinlock) NumPendingWriters() int {
	h, _ := split(s.v.Load())
	return int(h)
}

// IsLocked reports whether the lock is held in any mode (read or write).
func (s *RWSpinlock) IsLocked() bool {
	_, l := split(s.v.Load())
	return l != 0
}
