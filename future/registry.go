package future

import (
	"sync"
	"weak"
)

// Registry tracks live Promises via weak pointers so a scavenger can detect
// abandoned (garbage collected without being satisfied) promises without
// itself pinning them alive, modeled directly on eventloop/registry.go's
// weak-pointer ring-buffer scavenger.
//
// A Promise dropped without Set/SetException/Break already self-reports via
// its runtime.SetFinalizer hook (see promise.go); the Registry exists for
// callers that want to proactively sweep for stragglers rather than rely
// solely on GC timing — sequencer.Sequencer.Drain is one such caller,
// tracking every task's Promise and scavenging the full set once its
// barrier settles.
type Registry[T any] struct {
	mu     sync.Mutex
	data   map[uint64]weak.Pointer[Promise[T]]
	ring   []uint64
	head   int
	nextID uint64
}

// NewRegistry creates an empty Registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		data:   make(map[uint64]weak.Pointer[Promise[T]]),
		nextID: 1,
	}
}

// Track registers p, returning an opaque id usable for diagnostics.
func (r *Registry[T]) Track(p *Promise[T]) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	r.data[id] = weak.Make(p)
	r.ring = append(r.ring, id)
	return id
}

// Len reports how many ids the registry is still carrying (including ones
// that would be dropped on the next Scavenge).
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}

// Scavenge inspects up to batchSize entries (starting from where the last
// call left off, wrapping around), dropping any whose Promise has been
// garbage collected or has already settled. Returns the number removed.
func (r *Registry[T]) Scavenge(batchSize int) int {
	if batchSize <= 0 {
		return 0
	}

	r.mu.Lock()
	ringLen := len(r.ring)
	if ringLen == 0 {
		r.mu.Unlock()
		return 0
	}
	start := r.head
	end := start + batchSize
	if end > ringLen {
		end = ringLen
	}
	ids := append([]uint64(nil), r.ring[start:end]...)
	r.head = end
	if r.head >= ringLen {
		r.head = 0
	}
	r.mu.Unlock()

	var dead []uint64
	for _, id := range ids {
		r.mu.Lock()
		wp, ok := r.data[id]
		r.mu.Unlock()
		if !ok {
			continue
		}
		p := wp.Value()
		if p == nil || p.done {
			dead = append(dead, id)
		}
	}
	if len(dead) == 0 {
		return 0
	}

	r.mu.Lock()
	for _, id := range dead {
		delete(r.data, id)
	}
	r.compact()
	r.mu.Unlock()
	return len(dead)
}

// compact rebuilds the ring, dropping ids no longer present in data. Must
// be called with mu held.
func (r *Registry[T]) compact() {
	kept := r.ring[:0]
	newHead := 0
	for i, id := range r.ring {
		if _, ok := r.data[id]; ok {
			if i < r.head {
				newHead++
			}
			kept = append(kept, id)
		}
	}
	r.ring = kept
	r.head = newHead
	if r.head >= len(r.ring) {
		r.head = 0
	}
}
