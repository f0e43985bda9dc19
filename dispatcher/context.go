package dispatcher

import (
	"time"

	"github.com/bloomberg/quantum-sub000/future"
	"github.com/bloomberg/quantum-sub000/internal/coro"
	"github.com/bloomberg/quantum-sub000/internal/osyield"
	"github.com/bloomberg/quantum-sub000/queue"
	"github.com/bloomberg/quantum-sub000/task"
)

// CoroFunc is a coroutine task's entry closure (spec §4.7's "closure"
// argument), resolving Open Question 1 (SPEC_FULL.md §1.1) as the single
// calling convention every coroutine task uses: a typed *Context in, a
// result value and error out.
type CoroFunc func(ctx *Context) (any, error)

// IoFunc is an I/O task's entry closure: no coroutine context, since I/O
// tasks have no suspension points (spec §5).
type IoFunc func() (any, error)

// Context is the handle a running coroutine task receives (spec §4.3's
// "context handle"), and also the chain-builder returned by PostFirst and
// each of Then/OnError/Finally (spec §6's context.then/onError/finally/end
// API) — the same type serves both roles, matching the distilled spec's
// single "context" vocabulary.
type Context struct {
	disp    *Dispatcher
	t       *task.Task
	handle  *coro.Handle // attached once the task actually starts running
	promise *future.Promise[any]
	future  *future.Future[any]
}

// Future returns this stage's Future, settled once its closure (or the
// coroutine's last suspension) returns.
func (c *Context) Future() *future.Future[any] { return c.future }

// TaskID returns the running task's identity.
func (c *Context) TaskID() int64 { return c.t.ID }

// QueueID returns the queue this task is pinned to (or task.AnyQueue before
// resolution).
func (c *Context) QueueID() int { return c.t.QueueID }

// Yield implements syncx.Yielder: suspends the calling coroutine and hands
// control back to its worker, or performs a bare OS-thread yield if this
// Context is not attached to a running coroutine (e.g. called from the
// chain-builder, or from an IoFunc — spec §4.3: "yield() without a
// coroutine context is implemented as an OS-thread yield").
func (c *Context) Yield() {
	if c.handle != nil {
		c.handle.Yield()
		return
	}
	osyield.Yield()
}

// Sleep suspends the calling coroutine until d has elapsed (spec §5's
// "sleep(duration)" suspension point), tracked by the owning TaskQueue via
// a per-task wake time rather than blocking the worker.
func (c *Context) Sleep(d time.Duration) {
	if c.handle == nil {
		time.Sleep(d)
		return
	}
	c.handle.Sleep(queue.NowNanos() + d.Nanoseconds())
}

// Block suspends the calling coroutine until ready reports true, without
// holding its worker (spec §5's generic suspension-on-condition primitive;
// Sleep, Await and package syncx suspend through other paths).
func (c *Context) Block(ready func() bool) {
	if c.handle == nil {
		for !ready() {
			osyield.Yield()
		}
		return
	}
	c.handle.Block(ready)
}

// SetCLS, GetCLS and DeleteCLS expose the task's coroutine-local storage
// (spec §3).
func (c *Context) SetCLS(key string, value any) { c.t.SetCLS(key, value) }
func (c *Context) GetCLS(key string) (any, bool) { return c.t.GetCLS(key) }
func (c *Context) DeleteCLS(key string)          { c.t.DeleteCLS(key) }

// Await suspends the calling coroutine until f settles, then returns its
// value — the coroutine-aware counterpart to Future.Get that polls instead
// of blocking the worker's OS thread (spec §5: "waiting on a future" is a
// suspension point for coroutine tasks).
func Await[T any](c *Context, f *future.Future[T]) (T, error) {
	for !f.Ready() {
		c.Yield()
	}
	return f.Get()
}

// Post submits a new Standalone coroutine task from within a running task,
// resolving task.Same (spec §6) to c's own queue before delegating to
// Dispatcher.Post; any other queueID (including task.AnyQueue) passes
// through unchanged.
func (c *Context) Post(queueID int, highPriority bool, fn CoroFunc) (*future.Future[any], error) {
	return c.disp.Post(c.resolveSame(queueID), highPriority, fn)
}

// PostFirst begins a new continuation chain from within a running task,
// resolving task.Same (spec §6) to c's own queue before delegating to
// Dispatcher.PostFirst.
func (c *Context) PostFirst(queueID int, highPriority bool, fn CoroFunc) (*Context, error) {
	return c.disp.PostFirst(c.resolveSame(queueID), highPriority, fn)
}

// resolveSame maps task.Same to the queue this Context's own task is pinned
// to, leaving every other value (including task.AnyQueue) untouched.
func (c *Context) resolveSame(queueID int) int {
	if queueID == task.Same {
		return c.t.QueueID
	}
	return queueID
}

// Then appends a Continuation task to the chain, linked after c's task,
// returning its Context (spec §4.4/§6).
func (c *Context) Then(fn CoroFunc) *Context {
	return c.disp.link(c, task.Continuation, fn)
}

// OnError appends an ErrorHandler task, skipped (terminated without
// running) if the chain reaches it via a Success transition (spec §4.4).
func (c *Context) OnError(fn CoroFunc) *Context {
	return c.disp.link(c, task.ErrorHandler, fn)
}

// Finally appends a Final task, which always runs regardless of the
// outcome of every prior stage (spec §4.4).
func (c *Context) Finally(fn CoroFunc) *Context {
	return c.disp.link(c, task.Final, fn)
}

// End seals the chain and schedules its First task (spec §6's
// "context.end() -> FutureHandle<R>"), returning this stage's Future.
func (c *Context) End() (*future.Future[any], error) {
	head := task.Head(c.t)
	q := c.disp.resolveCoroQueue(head.QueueID, head.HighPriority)
	if err := q.Post(head); err != nil {
		return nil, err
	}
	return c.future, nil
}

// wrapCoroFn adapts a CoroFunc into a task.Func: the closure it returns
// settles promise with the user closure's result, attaches the started
// coro.Handle to ctx so subsequent Yield/Sleep/Block calls suspend the
// coroutine instead of the OS thread, and surfaces a non-nil error so the
// owning TaskQueue walks the continuation chain's error path.
func wrapCoroFn(ctx *Context, fn CoroFunc) task.Func {
	return func(raw any) (err error) {
		ctx.handle, _ = raw.(*coro.Handle)
		defer func() {
			if r := recover(); r != nil {
				err = coro.PanicError{Value: r}
				_ = ctx.promise.SetException(err)
			}
		}()
		v, err := fn(ctx)
		if err != nil {
			_ = ctx.promise.SetException(err)
			return err
		}
		_ = ctx.promise.Set(v)
		return nil
	}
}

// newContext builds a fresh Context (and its backing Promise/Future pair)
// for a not-yet-started task. Callers still need to set t.Fn via
// wrapCoroFn once the caller's closure is known.
func (d *Dispatcher) newContext(t *task.Task) *Context {
	p, f := future.New[any]()
	return &Context{disp: d, t: t, promise: p, future: f}
}

// link creates the next task in c's chain (type typ, closure fn), wires
// task.Link so it inherits c's queue unless retargeted, and returns its
// Context.
func (d *Dispatcher) link(c *Context, typ task.Type, fn CoroFunc) *Context {
	next := task.New(d.ids.Next(), typ, nil)
	nc := d.newContext(next)
	next.Fn = wrapCoroFn(nc, fn)
	task.Link(c.t, next)
	return nc
}

// Post submits a Standalone coroutine task for immediate execution (spec
// §4.7: "for Standalone tasks only) enqueues the task"), returning its
// Future.
func (d *Dispatcher) Post(queueID int, highPriority bool, fn CoroFunc) (*future.Future[any], error) {
	if err := d.checkSubmittable(); err != nil {
		return nil, err
	}
	if queueID != task.AnyQueue && (queueID < 0 || queueID >= len(d.coroQueues)) {
		return nil, ErrInvalidQueueID
	}
	t := task.New(d.ids.Next(), task.Standalone, nil)
	t.QueueID = queueID
	t.HighPriority = highPriority
	c := d.newContext(t)
	t.Fn = wrapCoroFn(c, fn)

	q := d.resolveCoroQueue(queueID, highPriority)
	if err := q.Post(t); err != nil {
		return nil, err
	}
	return c.future, nil
}

// PostFirst begins a continuation chain: the returned Context may be
// extended via Then/OnError/Finally and must be sealed with End to
// actually dispatch (spec §6).
func (d *Dispatcher) PostFirst(queueID int, highPriority bool, fn CoroFunc) (*Context, error) {
	if err := d.checkSubmittable(); err != nil {
		return nil, err
	}
	if queueID != task.AnyQueue && (queueID < 0 || queueID >= len(d.coroQueues)) {
		return nil, ErrInvalidQueueID
	}
	t := task.New(d.ids.Next(), task.First, nil)
	t.QueueID = queueID
	t.HighPriority = highPriority
	c := d.newContext(t)
	t.Fn = wrapCoroFn(c, fn)
	return c, nil
}

// PostAsyncIo submits an I/O task (spec §4.7/§6), returning its Future. I/O
// tasks have no continuation chain and no coroutine context.
func (d *Dispatcher) PostAsyncIo(queueID int, highPriority bool, fn IoFunc) (*future.Future[any], error) {
	if err := d.checkSubmittable(); err != nil {
		return nil, err
	}
	q, err := d.resolveIoQueue(queueID)
	if err != nil {
		return nil, err
	}

	p, f := future.New[any]()
	it := task.NewIoTask(d.ids.Next(), func() error {
		v, err := fn()
		if err != nil {
			_ = p.SetException(err)
			return err
		}
		_ = p.Set(v)
		return nil
	})
	it.HighPriority = highPriority
	if err := q.Post(it); err != nil {
		return nil, err
	}
	return f, nil
}
