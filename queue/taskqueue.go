// Package queue implements spec §4.5/§4.6's TaskQueue and IoQueue: the
// scheduling loops that drive internal/coro.Slot-backed coroutine tasks
// (and, for IoQueue, plain closures) to completion, splicing newly posted
// work from a spinlock-guarded waitQueue into the worker-owned runQueue.
package queue

import (
	"errors"
	"sync"

	"github.com/bloomberg/quantum-sub000/internal/coro"
	"github.com/bloomberg/quantum-sub000/internal/osyield"
	"github.com/bloomberg/quantum-sub000/spinlock"
	"github.com/bloomberg/quantum-sub000/task"
)

// ErrTerminated is returned by Post once the queue has been terminated.
var ErrTerminated = errors.New("queue: terminated")

// Router places a task's continuation (the result of task.Advance) onto
// whichever queue it belongs on; dispatcher.Dispatcher is the concrete
// implementation, since only it knows the full set of queues.
type Router interface {
	Route(t *task.Task)
}

// ContextFactory builds the context value passed to a task's Fn, wrapping
// a coro.Handle; dispatcher supplies the concrete factory so this package
// never needs to import dispatcher (task.Func's ctx is type-erased, see
// task.Func's doc comment).
type ContextFactory func(h *coro.Handle, t *task.Task) any

type runEntry struct {
	t           *task.Task
	slot        *coro.Slot
	started     bool
	ready       func() bool
	wakeAtNanos int64
}

func (e *runEntry) blocked() bool {
	if e.ready != nil {
		if e.ready() {
			e.ready = nil
			return false
		}
		return true
	}
	if e.wakeAtNanos != 0 {
		if NowNanos() >= e.wakeAtNanos {
			e.wakeAtNanos = 0
			return false
		}
		return true
	}
	return false
}

// TaskQueue is a single coroutine worker (spec §3/§4.5).
type TaskQueue struct {
	id int

	slots   *coro.SlotPool
	factory ContextFactory
	router  Router

	waitSp    *spinlock.Spinlock
	waitQueue []*task.Task

	parkMu   sync.Mutex
	parkCond *sync.Cond

	// runQueue, cursor and the blocked-cursor marker are touched only by
	// the goroutine running Run, per spec §3's "running iterator" owned
	// by a single worker.
	runQueue      []*runEntry
	cursor        int
	blockedCursor int
	blockedSet    bool

	stats Stats

	terminated bool
	termMu     sync.Mutex

	// shared, when non-nil, is the "any-queue" this worker also drains
	// from once its own queues are empty (spec §4.5's coroutine-sharing
	// policy); shared itself has no worker goroutine of its own.
	shared *TaskQueue

	// listeners are the regular queues attached to this queue as their
	// shared any-queue; Post broadcasts to each so a task posted directly
	// to the any-queue wakes a parked listener, not just itself.
	listeners []*TaskQueue

	isShared bool
}

// MarkShared marks this queue as a dispatcher-wide any-queue, so Post
// records shared-posted stats rather than regular posted stats.
func (q *TaskQueue) MarkShared() { q.isShared = true }

// New creates a TaskQueue with the given id. factory and router are
// supplied by the owning Dispatcher.
func New(id int, factory ContextFactory, router Router) *TaskQueue {
	q := &TaskQueue{
		id:      id,
		slots:   coro.NewSlotPool(),
		factory: factory,
		router:  router,
		waitSp:  spinlock.NewSpinlock(spinlock.DefaultBackoffConfig()),
	}
	q.parkCond = sync.NewCond(&q.parkMu)
	return q
}

// ID returns the queue's index.
func (q *TaskQueue) ID() int { return q.id }

// Stats returns a snapshot of the queue's counters.
func (q *TaskQueue) Stats() Snapshot { return q.stats.Snapshot() }

// AttachShared wires an "any-queue" this worker polls when idle (spec
// §4.5's sharing policy).
func (q *TaskQueue) AttachShared(shared *TaskQueue) {
	q.shared = shared
	shared.listeners = append(shared.listeners, q)
}

// Len reports the total number of tasks currently owned (running or
// waiting), used by the dispatcher's "shortest queue" Any-routing policy.
func (q *TaskQueue) Len() int {
	q.waitSp.Lock()
	waitLen := len(q.waitQueue)
	q.waitSp.Unlock()
	return waitLen + len(q.runQueue)
}

// Post appends t to the waitQueue (tail for normal priority, head for
// high-priority — spec §4.5's posting policy) and wakes a parked worker.
func (q *TaskQueue) Post(t *task.Task) error {
	q.termMu.Lock()
	terminated := q.terminated
	q.termMu.Unlock()
	if terminated {
		return ErrTerminated
	}

	q.waitSp.Lock()
	if t.HighPriority {
		q.waitQueue = append([]*task.Task{t}, q.waitQueue...)
	} else {
		q.waitQueue = append(q.waitQueue, t)
	}
	q.waitSp.Unlock()

	q.stats.recordPosted(t.HighPriority, q.isShared)

	q.wake()
	return nil
}

// wake broadcasts this queue's park condition and every listener's (for a
// shared any-queue, waking the regular-queue workers that drain it).
func (q *TaskQueue) wake() {
	q.parkMu.Lock()
	q.parkCond.Broadcast()
	q.parkMu.Unlock()
	for _, l := range q.listeners {
		l.parkMu.Lock()
		l.parkCond.Broadcast()
		l.parkMu.Unlock()
	}
}

func (q *TaskQueue) waitLen() int {
	q.waitSp.Lock()
	defer q.waitSp.Unlock()
	return len(q.waitQueue)
}

func (q *TaskQueue) spliceWait() {
	q.waitSp.Lock()
	if len(q.waitQueue) == 0 {
		q.waitSp.Unlock()
		return
	}
	posted := q.waitQueue
	q.waitQueue = nil
	q.waitSp.Unlock()

	for _, t := range posted {
		q.runQueue = append(q.runQueue, &runEntry{t: t, slot: q.slots.Acquire()})
	}
}

// Terminate marks the queue terminated, so Post rejects further tasks, and
// wakes the worker; Run returns once both queues have drained. Idle slots in
// the SlotPool are not retired. Idempotent.
func (q *TaskQueue) Terminate() {
	q.termMu.Lock()
	if q.terminated {
		q.termMu.Unlock()
		return
	}
	q.terminated = true
	q.termMu.Unlock()

	q.wake()
}

func (q *TaskQueue) isTerminated() bool {
	q.termMu.Lock()
	defer q.termMu.Unlock()
	return q.terminated
}

// Run drives the worker loop until Terminate is called and both queues
// have drained (spec §4.5, steps 1-5). Intended to run in its own
// goroutine; the Dispatcher spawns one per coroutine thread.
func (q *TaskQueue) Run() {
	for {
		if q.isTerminated() && len(q.runQueue) == 0 && q.waitLen() == 0 {
			return
		}

		if q.cursor >= len(q.runQueue) {
			// At the end of the current sweep: splice in anything newly
			// posted (the cursor then naturally sits at the first spliced
			// entry, since append only grows the tail past the old
			// length). If nothing was spliced, either the queue is
			// genuinely empty (park/steal) or it still holds
			// blocked/sleeping entries to revisit, so wrap the cursor
			// back to the start for another sweep (spec §4.5 step 2).
			q.spliceWait()
			if q.cursor >= len(q.runQueue) {
				if len(q.runQueue) == 0 {
					if q.stealFromShared() {
						continue
					}
					if q.isTerminated() {
						continue
					}
					q.park()
					continue
				}
				q.cursor = 0
			}
		}

		if q.blockedSet && q.cursor == q.blockedCursor {
			osyield.Yield()
			q.blockedSet = false
		}

		entry := q.runQueue[q.cursor]
		if entry.blocked() {
			if !q.blockedSet {
				q.blockedCursor = q.cursor
				q.blockedSet = true
			}
			q.cursor++
			continue
		}

		q.blockedSet = false
		pause := q.resume(entry)
		switch pause.Reason {
		case coro.Yielded:
			q.cursor++
		case coro.Blocked:
			entry.ready = pause.Ready
			q.cursor++
		case coro.Sleeping:
			entry.wakeAtNanos = pause.WakeAtNanos
			q.cursor++
		default: // coro.Done
			q.finish(entry, pause.Err)
		}
	}
}

func (q *TaskQueue) resume(e *runEntry) coro.Pause {
	if !e.started {
		e.started = true
		if e.t.QueueID == task.AnyQueue {
			// Pin the task to the concrete queue that actually picked it up
			// (spec §3: "a task is pinned to one queue for its lifetime"),
			// so task.Same resolves to a real index for anything this task
			// itself posts.
			e.t.QueueID = q.id
		}
		e.t.TryRun()
		return e.slot.Start(func(h *coro.Handle) error {
			ctx := q.factory(h, e.t)
			return e.t.Fn(ctx)
		})
	}
	e.t.TryRun()
	return e.slot.Resume()
}

func (q *TaskQueue) finish(e *runEntry, err error) {
	e.t.Terminate()
	q.slots.Release(e.slot)
	q.stats.recordCompleted(err)

	outcome := task.OutcomeSuccess
	if err != nil {
		outcome = task.OutcomeError
	}
	next := task.Advance(e.t, outcome)
	e.t.ClearCLS()

	// Remove the completed entry from runQueue, preserving the cursor
	// over the remaining tasks.
	q.runQueue = append(q.runQueue[:q.cursor], q.runQueue[q.cursor+1:]...)

	if next != nil && q.router != nil {
		q.router.Route(next)
	}
}

func (q *TaskQueue) park() {
	q.parkMu.Lock()
	for !q.isTerminated() && q.waitLen() == 0 && !q.sharedHasWork() {
		q.parkCond.Wait()
	}
	q.parkMu.Unlock()
}

func (q *TaskQueue) sharedHasWork() bool {
	if q.shared == nil {
		return false
	}
	return q.shared.waitLen() > 0
}

// stealFromShared pulls exactly one task from the shared any-queue's
// waitQueue into this worker's runQueue, per spec §4.5: "workers of
// regular queues dequeue from it."
func (q *TaskQueue) stealFromShared() bool {
	if q.shared == nil {
		return false
	}
	q.shared.waitSp.Lock()
	if len(q.shared.waitQueue) == 0 {
		q.shared.waitSp.Unlock()
		return false
	}
	t := q.shared.waitQueue[0]
	q.shared.waitQueue = q.shared.waitQueue[1:]
	q.shared.waitSp.Unlock()

	q.runQueue = append(q.runQueue, &runEntry{t: t, slot: q.slots.Acquire()})
	return true
}
