package queue

import (
	"sync"

	"github.com/bloomberg/quantum-sub000/spinlock"
	"github.com/bloomberg/quantum-sub000/task"
)

// IoQueue is an I/O worker's queue (spec §4.6): a single deque of IoTasks,
// run to completion one at a time (no coroutine stack, no continuation
// chain).
type IoQueue struct {
	id int

	waitSp *spinlock.Spinlock
	queue  []*task.IoTask

	parkMu   sync.Mutex
	parkCond *sync.Cond

	stats Stats

	termMu     sync.Mutex
	terminated bool

	// shared, when set, makes this a dedicated-queue-mode private worker
	// queue with shared as the companion Any sink; alternate flips each
	// iteration to decide which to check first, resolving spec §9's Open
	// Question 2 by making the flag per-worker rather than process-wide.
	shared    *IoQueue
	alternate bool

	// peers, when non-empty, puts this queue into load-balanced mode:
	// poll across the bank (self + peers) with backoff instead of a
	// fixed own/shared split.
	peers   []*IoQueue
	backoff PollBackoffConfig

	// listenersIo are the dedicated-mode workers attached to this queue
	// as their shared Any sink (mirrors TaskQueue.listeners).
	listenersIo []*IoQueue
	isShared    bool
}

// MarkShared marks this queue as the dispatcher-wide Any sink, so Post
// records shared-posted stats rather than regular posted stats.
func (q *IoQueue) MarkShared() { q.isShared = true }

// NewIoQueue creates a dedicated-queue-mode IoQueue with id.
func NewIoQueue(id int) *IoQueue {
	q := &IoQueue{id: id, waitSp: spinlock.NewSpinlock(spinlock.DefaultBackoffConfig())}
	q.parkCond = sync.NewCond(&q.parkMu)
	return q
}

// ID returns the queue's index.
func (q *IoQueue) ID() int { return q.id }

// Stats returns a snapshot of the queue's counters.
func (q *IoQueue) Stats() Snapshot { return q.stats.Snapshot() }

// AttachShared wires the Any-post sink this dedicated-mode worker also
// checks, per spec §4.6's "single shared queue serves Any posts."
func (q *IoQueue) AttachShared(shared *IoQueue) {
	q.shared = shared
	shared.listenersIo = append(shared.listenersIo, q)
}

// ConfigureLoadBalanced switches this queue into load-balanced mode,
// polling across peers (the rest of the shared bank) with cfg's backoff
// schedule, per spec §4.6's alternate mode.
func (q *IoQueue) ConfigureLoadBalanced(peers []*IoQueue, cfg PollBackoffConfig) {
	q.peers = peers
	q.backoff = cfg
}

func (q *IoQueue) isTerminated() bool {
	q.termMu.Lock()
	defer q.termMu.Unlock()
	return q.terminated
}

// Terminate stops the worker loop once both queues are empty. Idempotent.
func (q *IoQueue) Terminate() {
	q.termMu.Lock()
	if q.terminated {
		q.termMu.Unlock()
		return
	}
	q.terminated = true
	q.termMu.Unlock()
	q.wake()
}

func (q *IoQueue) wake() {
	q.parkMu.Lock()
	q.parkCond.Broadcast()
	q.parkMu.Unlock()
	for _, l := range q.listenersIo {
		l.parkMu.Lock()
		l.parkCond.Broadcast()
		l.parkMu.Unlock()
	}
}

// Post appends t (tail for normal priority, head for high-priority).
func (q *IoQueue) Post(t *task.IoTask) error {
	if q.isTerminated() {
		return ErrTerminated
	}
	q.waitSp.Lock()
	if t.HighPriority {
		q.queue = append([]*task.IoTask{t}, q.queue...)
	} else {
		q.queue = append(q.queue, t)
	}
	q.waitSp.Unlock()
	q.stats.recordPosted(t.HighPriority, q.isShared)
	q.wake()
	return nil
}

func (q *IoQueue) len() int {
	q.waitSp.Lock()
	defer q.waitSp.Unlock()
	return len(q.queue)
}

// Len reports the number of tasks currently queued, not counting one
// in-flight execution (spec §4.6); used by Dispatcher.Drain to detect
// outstanding I/O work.
func (q *IoQueue) Len() int { return q.len() }

func (q *IoQueue) pop() *task.IoTask {
	q.waitSp.Lock()
	defer q.waitSp.Unlock()
	if len(q.queue) == 0 {
		return nil
	}
	t := q.queue[0]
	q.queue = q.queue[1:]
	return t
}

// Run drives the worker loop. Dispatches to the dedicated-queue or
// load-balanced strategy depending on configuration.
func (q *IoQueue) Run() {
	if len(q.peers) > 0 {
		q.runLoadBalanced()
		return
	}
	q.runDedicated()
}

func (q *IoQueue) runDedicated() {
	for {
		if q.isTerminated() && q.len() == 0 && (q.shared == nil || q.shared.len() == 0) {
			return
		}

		var t *task.IoTask
		if q.alternate {
			t = q.pop()
			if t == nil && q.shared != nil {
				t = q.shared.pop()
			}
		} else {
			if q.shared != nil {
				t = q.shared.pop()
			}
			if t == nil {
				t = q.pop()
			}
		}
		q.alternate = !q.alternate

		if t == nil {
			q.park()
			continue
		}
		q.execute(t)
	}
}

func (q *IoQueue) runLoadBalanced() {
	b := newPollBackoff(q.backoff)
	for {
		if q.isTerminated() && q.bankEmpty() {
			return
		}

		t := q.pop()
		if t == nil {
			for _, p := range q.peers {
				if t = p.pop(); t != nil {
					break
				}
			}
		}
		if t == nil {
			b.sleep()
			continue
		}
		b.reset()
		q.execute(t)
	}
}

func (q *IoQueue) bankEmpty() bool {
	if q.len() != 0 {
		return false
	}
	for _, p := range q.peers {
		if p.len() != 0 {
			return false
		}
	}
	return true
}

func (q *IoQueue) execute(t *task.IoTask) {
	err := t.Fn()
	q.stats.recordCompleted(err)
}

func (q *IoQueue) park() {
	q.parkMu.Lock()
	for !q.isTerminated() && q.len() == 0 && (q.shared == nil || q.shared.len() == 0) {
		q.parkCond.Wait()
	}
	q.parkMu.Unlock()
}
