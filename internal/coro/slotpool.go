package coro

import (
	"sync"

	"github.com/bloomberg/quantum-sub000/pool"
)

// defaultSlabSize is the number of goroutine slots SlotPool keeps warm
// (reused without re-creating a goroutine) before spilling to pool.Pool's
// heap fallback — a steady-state budget for one TaskQueue worker; bursts
// beyond it still succeed, just without the always-warm reuse.
const defaultSlabSize = 32

type slotEntry struct {
	backing   []Slot
	poolOwned bool
}

// SlotPool hands out reusable Slots, backed by pool.Pool[Slot]'s
// contiguous-slab-plus-heap-fallback contract (spec §4.2): the fixed-size
// region being pooled is the slot's pair of channels and its goroutine, not
// raw stack memory. A slab-owned Slot's goroutine survives Release, idling
// on jobs until the next Acquire hands it back out; a heap-fallback Slot's
// goroutine is retired on Release instead, since pool.Pool's heap path
// models a transient overflow rather than a second always-warm pool.
type SlotPool struct {
	pool *pool.Pool[Slot]

	mu   sync.Mutex
	live map[*Slot]slotEntry
	idle int // started slab slots currently released back to the pool
}

// NewSlotPool creates an empty SlotPool.
func NewSlotPool() *SlotPool {
	return &SlotPool{
		pool: pool.New[Slot](defaultSlabSize),
		live: make(map[*Slot]slotEntry),
	}
}

// Acquire returns a free Slot, creating a new one (and its backing
// goroutine) if none are idle.
func (p *SlotPool) Acquire() *Slot {
	backing, poolOwned := p.pool.Allocate(1)
	slot := &backing[0]
	reused := slot.started()
	if !reused {
		slot.start()
	}

	p.mu.Lock()
	if reused {
		p.idle--
	}
	p.live[slot] = slotEntry{backing: backing, poolOwned: poolOwned}
	p.mu.Unlock()

	return slot
}

// Release returns a Slot (whose coroutine has completed, i.e. its last
// observed Pause had Reason == Done) to the pool.
func (p *SlotPool) Release(s *Slot) {
	p.mu.Lock()
	e, ok := p.live[s]
	delete(p.live, s)
	if ok && e.poolOwned {
		p.idle++
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	if !e.poolOwned {
		s.Close()
	}
	p.pool.Deallocate(e.backing, e.poolOwned)
}

// Len reports the number of currently idle slab slots: slots whose
// goroutine has been started and which have been released for reuse.
func (p *SlotPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle
}
