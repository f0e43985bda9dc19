package dispatcher

import (
	"runtime"
	"sync"
	"time"

	"github.com/bloomberg/quantum-sub000/internal/affinity"
	"github.com/bloomberg/quantum-sub000/internal/coro"
	"github.com/bloomberg/quantum-sub000/queue"
	"github.com/bloomberg/quantum-sub000/task"
)

// Dispatcher is the coroutine/I/O worker pool fabric of spec §4.7: it owns
// every TaskQueue and IoQueue, resolves Any-queue posts, and drives the
// dispatcher-wide drain/terminate lifecycle.
type Dispatcher struct {
	opts   *dispatcherOptions
	logger Logger

	coroQueues []*queue.TaskQueue
	coroAny    *queue.TaskQueue // non-nil iff coroSharingForAny

	ioQueues []*queue.IoQueue
	ioShared *queue.IoQueue // the dedicated-mode Any sink; nil in load-balanced mode

	ids *task.IDGenerator

	mu         sync.Mutex
	draining   bool
	terminated bool

	wg sync.WaitGroup
}

// New constructs a Dispatcher and starts every worker goroutine, per spec
// §4.7's construction contract.
func New(opts ...Option) (*Dispatcher, error) {
	cfg, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = getGlobalLogger()
	}

	d := &Dispatcher{
		opts:   cfg,
		logger: logger,
		ids:    task.NewIDGenerator(),
	}

	numCoro := resolveCoroutineThreads(cfg.numCoroutineThreads)
	numIo := resolveIoThreads(cfg.numIoThreads)

	d.coroQueues = make([]*queue.TaskQueue, numCoro)
	for i := range d.coroQueues {
		d.coroQueues[i] = queue.New(i, d.contextFactory, d)
	}
	if cfg.coroSharingForAny {
		d.coroAny = queue.New(task.AnyQueue, d.contextFactory, d)
		d.coroAny.MarkShared()
		for _, q := range d.coroQueues {
			q.AttachShared(d.coroAny)
		}
	}

	d.ioQueues = make([]*queue.IoQueue, numIo)
	for i := range d.ioQueues {
		d.ioQueues[i] = queue.NewIoQueue(i)
	}
	if cfg.loadBalanceSharedIoQueues {
		backoff := queue.PollBackoffConfig{
			Policy:      parseBackoffPolicy(cfg.loadBalancePollIntervalBackoffPolicy),
			MinInterval: cfg.loadBalancePollInterval(),
			MaxInterval: 100 * cfg.loadBalancePollInterval(),
			MaxBackoffs: cfg.loadBalancePollIntervalNumBackoffs,
		}
		for i, q := range d.ioQueues {
			peers := make([]*queue.IoQueue, 0, len(d.ioQueues)-1)
			for j, p := range d.ioQueues {
				if j != i {
					peers = append(peers, p)
				}
			}
			q.ConfigureLoadBalanced(peers, backoff)
		}
	} else {
		d.ioShared = queue.NewIoQueue(task.AnyQueue)
		d.ioShared.MarkShared()
		for _, q := range d.ioQueues {
			q.AttachShared(d.ioShared)
		}
	}

	d.startWorkers(cfg)
	return d, nil
}

func (d *Dispatcher) startWorkers(cfg *dispatcherOptions) {
	cores := runtime.NumCPU()
	for i, q := range d.coroQueues {
		q := q
		i := i
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if cfg.pinCoroutineThreadsToCores {
				runtime.LockOSThread()
				defer runtime.UnlockOSThread()
				affinity.Pin(i % cores)
			}
			q.Run()
		}()
	}
	for _, q := range d.ioQueues {
		q := q
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			q.Run()
		}()
	}
}

func resolveCoroutineThreads(n int) int {
	switch {
	case n == -1:
		return runtime.NumCPU()
	case n <= 0:
		return 1
	default:
		return n
	}
}

func resolveIoThreads(n int) int {
	if n <= 0 {
		return 1
	}
	return n
}

func parseBackoffPolicy(s string) queue.PollBackoffPolicy {
	if s == "exponential" {
		return queue.PollBackoffExponential
	}
	return queue.PollBackoffLinear
}

// contextFactory implements queue.ContextFactory: it hands the raw
// coro.Handle straight through (see taskqueue_test.go's plainFactory), since
// the Context value the user closure actually sees is built at chain-
// construction time and merely has its handle attached at start, not
// rebuilt per task by the queue (see context.go's wrapCoroFn).
func (d *Dispatcher) contextFactory(h *coro.Handle, _ *task.Task) any {
	return h
}

// Route implements queue.Router: it places a continuation task onto the
// queue named by its QueueID, resolving Any per spec §4.5's sharing policy.
func (d *Dispatcher) Route(t *task.Task) {
	q := d.resolveCoroQueue(t.QueueID, t.HighPriority)
	if err := q.Post(t); err != nil {
		d.logger.Error("dispatcher", map[string]any{"taskID": t.ID, "queueID": q.ID()}, err)
	}
}

func (d *Dispatcher) resolveCoroQueue(queueID int, highPriority bool) *queue.TaskQueue {
	if queueID != task.AnyQueue {
		return d.coroQueues[queueID]
	}
	if d.coroAny != nil {
		return d.coroAny
	}
	return d.shortestCoroQueueInRange()
}

// shortestCoroQueueInRange implements the non-sharing Any-routing policy:
// the currently shortest queue within the configured range, ties going to
// the first found (spec §4.5). An invalid range collapses to the full
// range (spec §6).
func (d *Dispatcher) shortestCoroQueueInRange() *queue.TaskQueue {
	low, high := d.opts.coroQueueIdRangeForAnyLow, d.opts.coroQueueIdRangeForAnyHigh
	n := len(d.coroQueues)
	if low < 0 || high < 0 || low > high || high >= n {
		low, high = 0, n-1
	}
	best := d.coroQueues[low]
	bestLen := best.Len()
	for i := low + 1; i <= high; i++ {
		if l := d.coroQueues[i].Len(); l < bestLen {
			best, bestLen = d.coroQueues[i], l
		}
	}
	return best
}

func (d *Dispatcher) resolveIoQueue(queueID int) (*queue.IoQueue, error) {
	if queueID == task.AnyQueue {
		if d.ioShared != nil {
			return d.ioShared, nil
		}
		return d.ioQueues[0], nil
	}
	if queueID < 0 || queueID >= len(d.ioQueues) {
		return nil, ErrInvalidQueueID
	}
	return d.ioQueues[queueID], nil
}

func (d *Dispatcher) checkSubmittable() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.terminated {
		return ErrDispatcherTerminated
	}
	if d.draining {
		return ErrDispatcherDraining
	}
	return nil
}

// Drain sets the drain flag (rejecting further posts), then polls until
// every queue is empty or timeout elapses (spec §4.7). Unless isFinal, the
// drain flag is cleared again on exit.
func (d *Dispatcher) Drain(timeout time.Duration, isFinal bool) bool {
	d.mu.Lock()
	d.draining = true
	d.mu.Unlock()

	deadline := time.Now().Add(timeout)
	const pollInterval = time.Millisecond
	for {
		if d.allQueuesEmpty() {
			break
		}
		if timeout > 0 && time.Now().After(deadline) {
			break
		}
		time.Sleep(pollInterval)
	}

	empty := d.allQueuesEmpty()
	d.mu.Lock()
	if !isFinal {
		d.draining = false
	}
	d.mu.Unlock()
	return empty
}

func (d *Dispatcher) allQueuesEmpty() bool {
	for _, q := range d.coroQueues {
		if q.Len() != 0 {
			return false
		}
	}
	if d.coroAny != nil && d.coroAny.Len() != 0 {
		return false
	}
	for _, q := range d.ioQueues {
		if q.Len() != 0 {
			return false
		}
	}
	if d.ioShared != nil && d.ioShared.Len() != 0 {
		return false
	}
	return true
}

// Terminate stops every worker and waits for them to exit. Idempotent.
func (d *Dispatcher) Terminate() {
	d.mu.Lock()
	if d.terminated {
		d.mu.Unlock()
		return
	}
	d.terminated = true
	d.mu.Unlock()

	for _, q := range d.coroQueues {
		q.Terminate()
	}
	if d.coroAny != nil {
		d.coroAny.Terminate()
	}
	for _, q := range d.ioQueues {
		q.Terminate()
	}
	if d.ioShared != nil {
		d.ioShared.Terminate()
	}
	d.wg.Wait()
}

// QueueStats aggregates a point-in-time snapshot of every queue's counters
// (SPEC_FULL.md §4's "queue statistics" supplement).
type QueueStats struct {
	Coroutine []queue.Snapshot
	CoroAny   *queue.Snapshot
	IO        []queue.Snapshot
	IOShared  *queue.Snapshot
}

// Stats returns a QueueStats snapshot across every coroutine and I/O queue.
func (d *Dispatcher) Stats() QueueStats {
	s := QueueStats{
		Coroutine: make([]queue.Snapshot, len(d.coroQueues)),
		IO:        make([]queue.Snapshot, len(d.ioQueues)),
	}
	for i, q := range d.coroQueues {
		s.Coroutine[i] = q.Stats()
	}
	for i, q := range d.ioQueues {
		s.IO[i] = q.Stats()
	}
	if d.coroAny != nil {
		snap := d.coroAny.Stats()
		s.CoroAny = &snap
	}
	if d.ioShared != nil {
		snap := d.ioShared.Stats()
		s.IOShared = &snap
	}
	return s
}
