package syncx

import "sync/atomic"

// CondVar is a yield-aware condition variable companion to Mutex (spec
// §4.8). It does not wrap sync.Cond: Wait must never park the calling OS
// thread, since that thread may be a worker shared by other coroutine
// slots. Instead Wait releases the associated Mutex, spins on a generation
// counter bumped by Signal/Broadcast (yielding via the caller's Yielder
// between checks), then reacquires the Mutex before returning — the same
// externally-visible contract as sync.Cond.Wait, realized without a real
// OS-level park.
type CondVar struct {
	gen atomic.Uint64
}

// NewCondVar creates a CondVar.
func NewCondVar() *CondVar { return &CondVar{} }

// Wait releases m, waits for a Signal/Broadcast (or a spurious wake — as
// with sync.Cond, callers must re-check their predicate in a loop), then
// reacquires m before returning. taskID must be the same one that holds m.
func (c *CondVar) Wait(m *Mutex, taskID int64, y Yielder) {
	if y == nil {
		y = OSThreadYielder{}
	}
	start := c.gen.Load()
	m.Unlock()
	for c.gen.Load() == start {
		y.Yield()
	}
	m.Lock(taskID, y)
}

// Signal wakes at least one waiter (in this spin-based realization, it may
// wake all of them; spurious wakes are permitted by the contract).
func (c *CondVar) Signal() { c.gen.Add(1) }

// Broadcast wakes every waiter.
func (c *CondVar) Broadcast() { c.gen.Add(1) }
