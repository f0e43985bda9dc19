package queue

import "sync/atomic"

// Stats are the per-queue counters of spec §6/SPEC_FULL.md §4 ("Queue
// statistics"), grounded on quantum_queue_statistics_impl.h: the
// distillation only mentions a "stats object" for I/O queues in passing,
// but the original exposes the same counters for coroutine queues too.
type Stats struct {
	posted       atomic.Int64
	sharedPosted atomic.Int64
	completed    atomic.Int64
	errored      atomic.Int64
	highPriority atomic.Int64
}

// Snapshot is a point-in-time value copy of Stats, safe to read without
// racing the counters (eventloop/metrics.go's "Snapshot returns a value
// copy" convention).
type Snapshot struct {
	Posted       int64
	SharedPosted int64
	Completed    int64
	Errored      int64
	HighPriority int64
}

func (s *Stats) recordPosted(highPriority, shared bool) {
	s.posted.Add(1)
	if shared {
		s.sharedPosted.Add(1)
	}
	if highPriority {
		s.highPriority.Add(1)
	}
}

func (s *Stats) recordCompleted(err error) {
	s.completed.Add(1)
	if err != nil {
		s.errored.Add(1)
	}
}

// Snapshot returns a value copy of the current counters.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Posted:       s.posted.Load(),
		SharedPosted: s.sharedPosted.Load(),
		Completed:    s.completed.Load(),
		Errored:      s.errored.Load(),
		HighPriority: s.highPriority.Load(),
	}
}
