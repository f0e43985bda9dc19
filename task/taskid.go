package task

import (
	"math"
	"sync/atomic"
)

// IDGenerator hands out monotonically decreasing, strictly negative task
// ids (spec §3: "monotonically assigned negative integer ... ids never
// reach zero, roll over skipping zero"), grounded on the rollover
// arithmetic in quantum_task_id_impl.h, which the distilled spec states as
// an invariant without spelling out.
type IDGenerator struct {
	next atomic.Int64
}

// NewIDGenerator creates a generator whose first Next() call returns -1.
func NewIDGenerator() *IDGenerator {
	g := &IDGenerator{}
	g.next.Store(-1)
	return g
}

// Next returns the next id and advances the generator. Decrements toward
// math.MinInt64, then rolls over to -1 again, always skipping 0.
func (g *IDGenerator) Next() int64 {
	for {
		cur := g.next.Load()
		nxt := cur - 1
		if cur == math.MinInt64 || nxt == 0 {
			nxt = -1
		}
		if g.next.CompareAndSwap(cur, nxt) {
			return cur
		}
	}
}
