// Package sequencer implements spec §4.10: a per-key FIFO scheduler layered
// over a dispatcher.Dispatcher, plus a universal barrier queue that every
// key's FIFO must drain through in arrival order.
package sequencer

import (
	"sync/atomic"
	"time"

	"github.com/bloomberg/quantum-sub000/dispatcher"
	"github.com/bloomberg/quantum-sub000/future"
	"github.com/bloomberg/quantum-sub000/internal/coro"
	"github.com/bloomberg/quantum-sub000/syncx"
	"github.com/bloomberg/quantum-sub000/task"
)

// seqTask is one pending entry in one or more key FIFOs (or the universal
// FIFO). pendingCount is the number of FIFOs it is enqueued on but not yet
// head of; it becomes dispatchable the instant this reaches zero.
type seqTask struct {
	id           int64
	universal    bool
	keys         []any
	affectedRecs []*keyRecord

	fn           dispatcher.CoroFunc
	queueID      int
	highPriority bool
	opaque       any

	pendingCount int

	promise *future.Promise[any]
	future  *future.Future[any]
}

// keyRecord is the FIFO and bookkeeping for a single sequencing key.
type keyRecord struct {
	fifo   []*seqTask
	posted atomic.Int64
}

// Sequencer imposes FIFO-per-key and universal-barrier ordering over tasks
// dispatched onto a shared Dispatcher (spec §4.10).
type Sequencer struct {
	disp *dispatcher.Dispatcher
	opts *sequencerOptions

	mu        *syncx.Mutex
	keys      map[any]*keyRecord
	universal []*seqTask
	seq       atomic.Int64

	draining bool

	universalPosted atomic.Int64

	// strays tracks every task's Promise so Drain can proactively sweep
	// stragglers (spec §4.10) instead of relying solely on GC timing to
	// settle them via the finalizer in future/promise.go.
	strays *future.Registry[any]
}

// New creates a Sequencer driven by disp.
func New(disp *dispatcher.Dispatcher, opts ...Option) (*Sequencer, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}
	return &Sequencer{
		disp:   disp,
		opts:   cfg,
		mu:     syncx.NewMutex(),
		keys:   make(map[any]*keyRecord),
		strays: future.NewRegistry[any](),
	}, nil
}

// keyRecordFor returns k's record, lazily creating it and catching it up
// with whatever universal tasks are already in flight (spec §4.10 step 1):
// since a brand-new record's FIFO is empty, "copy onto the head" reduces to
// seeding it in order, with only the leading universal task (already head
// of every other FIFO it occupies) exempt from an extra pending increment.
// Must be called with mu held.
func (s *Sequencer) keyRecordFor(k any) *keyRecord {
	if rec, ok := s.keys[k]; ok {
		return rec
	}
	rec := &keyRecord{}
	for i, u := range s.universal {
		if i > 0 {
			u.pendingCount++
		}
		u.affectedRecs = append(u.affectedRecs, rec)
		rec.fifo = append(rec.fifo, u)
	}
	s.keys[k] = rec
	return rec
}

// Enqueue schedules fn to run once every key in keys reaches the head of its
// FIFO (spec §4.10). The returned Future settles with fn's result.
func (s *Sequencer) Enqueue(keys []any, highPriority bool, queueID int, opaque any, fn dispatcher.CoroFunc) (*future.Future[any], error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	return s.enqueue(keys, false, highPriority, queueID, opaque, fn, false)
}

// EnqueueUniversal schedules fn as a barrier: it is appended to every
// existing key's FIFO (and the universal FIFO) and only runs once it is
// head of all of them, after which every key FIFO it touched resumes
// draining independently (spec §4.10).
func (s *Sequencer) EnqueueUniversal(highPriority bool, queueID int, opaque any, fn dispatcher.CoroFunc) (*future.Future[any], error) {
	return s.enqueue(nil, true, highPriority, queueID, opaque, fn, false)
}

func (s *Sequencer) enqueue(keys []any, universal bool, highPriority bool, queueID int, opaque any, fn dispatcher.CoroFunc, bypassDraining bool) (*future.Future[any], error) {
	p, f := future.New[any]()
	s.strays.Track(p)
	st := &seqTask{
		id:           s.seq.Add(1),
		universal:    universal,
		keys:         keys,
		fn:           fn,
		queueID:      queueID,
		highPriority: highPriority,
		opaque:       opaque,
		promise:      p,
		future:       f,
	}

	s.mu.Lock(0, nil)
	if s.draining && !bypassDraining {
		s.mu.Unlock()
		return nil, ErrDraining
	}

	if universal {
		if len(s.universal) > 0 {
			st.pendingCount++
		}
		s.universal = append(s.universal, st)
		s.universalPosted.Add(1)
		for _, rec := range s.keys {
			if len(rec.fifo) > 0 {
				st.pendingCount++
			}
			rec.fifo = append(rec.fifo, st)
			rec.posted.Add(1)
			st.affectedRecs = append(st.affectedRecs, rec)
		}
	} else {
		for _, k := range keys {
			rec := s.keyRecordFor(k)
			if len(rec.fifo) > 0 {
				st.pendingCount++
			}
			rec.fifo = append(rec.fifo, st)
			rec.posted.Add(1)
			st.affectedRecs = append(st.affectedRecs, rec)
		}
	}
	ready := st.pendingCount == 0
	s.mu.Unlock()

	if ready {
		s.dispatch(st)
	}
	return f, nil
}

// dispatch posts st onto the Dispatcher, routing its result into st's own
// Promise (established at enqueue time) and running completion bookkeeping
// once it finishes. Never called with mu held.
func (s *Sequencer) dispatch(st *seqTask) {
	_, err := s.disp.Post(st.queueID, st.highPriority, func(ctx *dispatcher.Context) (v any, fnErr error) {
		func() {
			defer func() {
				if r := recover(); r != nil {
					fnErr = coro.PanicError{Value: r}
				}
			}()
			v, fnErr = st.fn(ctx)
		}()
		if fnErr != nil {
			_ = st.promise.SetException(fnErr)
		} else {
			_ = st.promise.Set(v)
		}
		s.complete(st)
		if fnErr != nil && s.opts.exceptionCallback != nil {
			s.opts.exceptionCallback(fnErr, st.opaque)
		}
		return v, fnErr
	})
	if err != nil {
		_ = st.promise.SetException(err)
		s.complete(st)
	}
}

// complete pops st from the head of every FIFO it occupies, advancing each
// newly-exposed head's pendingCount and collecting whatever becomes
// dispatchable as a result, then dispatches those outside the lock (spec
// §4.10/§5: "never held while invoking user code").
func (s *Sequencer) complete(st *seqTask) {
	s.mu.Lock(0, nil)
	var ready []*seqTask
	for _, rec := range st.affectedRecs {
		if len(rec.fifo) == 0 || rec.fifo[0] != st {
			continue
		}
		rec.fifo = rec.fifo[1:]
		if len(rec.fifo) > 0 {
			head := rec.fifo[0]
			head.pendingCount--
			if head.pendingCount == 0 {
				ready = append(ready, head)
			}
		}
	}
	if st.universal && len(s.universal) > 0 && s.universal[0] == st {
		s.universal = s.universal[1:]
		if len(s.universal) > 0 {
			head := s.universal[0]
			head.pendingCount--
			if head.pendingCount == 0 {
				ready = append(ready, head)
			}
		}
	}
	s.mu.Unlock()

	for _, r := range ready {
		s.dispatch(r)
	}
}

// Drain enqueues a universal sentinel and waits up to timeout for it to
// settle, having first set the draining flag so no task enqueued after the
// call starts can jump ahead of it (spec §4.10). Unless isFinal, the
// draining flag is cleared again before returning.
//
// The sentinel's own enqueue (and the wait for it to settle) calls back into
// the Sequencer's locking, so the draining flag is set, then mu is released
// for that scope via a ReverseGuard and reacquired once it returns, rather
// than held across it (spec §4.8).
func (s *Sequencer) Drain(timeout time.Duration, isFinal bool) bool {
	s.mu.Lock(0, nil)
	s.draining = true
	guard := syncx.NewReverseGuard(s.mu, 0, nil)

	f, err := s.enqueue(nil, true, false, task.AnyQueue, nil, func(ctx *dispatcher.Context) (any, error) {
		return nil, nil
	}, true)

	var drained bool
	if err == nil {
		drained = f.WaitFor(timeout) == future.WaitReady
	}

	guard.Release()
	if !isFinal {
		s.draining = false
	}
	s.mu.Unlock()

	s.strays.Scavenge(s.strays.Len())
	return drained
}

// TrimSequenceKeys removes every key whose FIFO is currently empty,
// returning the number of keys still tracked afterward (spec §4.10).
func (s *Sequencer) TrimSequenceKeys() int {
	s.mu.Lock(0, nil)
	defer s.mu.Unlock()
	for k, rec := range s.keys {
		if len(rec.fifo) == 0 {
			delete(s.keys, k)
		}
	}
	return len(s.keys)
}
