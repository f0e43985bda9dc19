// Package quantum is a coroutine/IO dispatch engine: a fixed pool of
// goroutine-backed coroutine workers and I/O workers, a continuation-chain
// task model (then/onError/finally), futures for collecting results, and a
// per-key FIFO sequencer layered on top for strict ordering guarantees.
//
// # Architecture
//
// [dispatcher.Dispatcher] owns every coroutine [queue.TaskQueue] and I/O
// [queue.IoQueue] and is the engine's public entry point:
// [dispatcher.Dispatcher.Post] submits a single coroutine task,
// [dispatcher.Dispatcher.PostFirst] begins a
// continuation chain extended via [dispatcher.Context.Then],
// [dispatcher.Context.OnError] and [dispatcher.Context.Finally] and sealed
// with [dispatcher.Context.End], and [dispatcher.Dispatcher.PostAsyncIo] submits a
// plain closure onto the I/O pool. Every submission returns a
// [future.Future] settled once its task (or chain tail) completes.
//
// Coroutine tasks run atop [internal/coro]'s goroutine-per-slot model: each
// [queue.TaskQueue] worker resumes one [internal/coro.Handle] at a time,
// suspending it on [dispatcher.Context.Yield], [dispatcher.Context.Sleep] or
// [dispatcher.Context.Block] rather than blocking the worker's OS thread.
// [dispatcher.Await] suspends a coroutine until an arbitrary
// [future.Future] settles, the bridge between coroutine tasks and I/O
// tasks (or any other asynchronous producer).
//
// [sequencer.Sequencer] sits above a Dispatcher: [sequencer.Sequencer.Enqueue]
// imposes FIFO order on tasks sharing a key, and
// [sequencer.Sequencer.EnqueueUniversal] enqueues a barrier every key's FIFO
// must drain through before resuming independently.
//
// # Concurrency
//
// Coroutine-local storage ([dispatcher.Context.SetCLS]/
// [dispatcher.Context.GetCLS]) is task-scoped, not worker-scoped.
// [syncx.Mutex], [syncx.CondVar] and [syncx.RWMutex] are yield-aware locks
// for use inside coroutine tasks: a blocked caller yields instead of
// parking its OS thread. [spinlock.Spinlock] and [spinlock.RWSpinlock]
// back the engine's own hot-path internals (queues, the slot pool) and are not
// intended for use from task closures.
//
// # Usage
//
//	d, err := dispatcher.New(
//	    dispatcher.WithNumCoroutineThreads(4),
//	    dispatcher.WithNumIoThreads(2),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Terminate()
//
//	f, err := d.Post(task.AnyQueue, false, func(ctx *dispatcher.Context) (any, error) {
//	    return 42, nil
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	v, err := f.Get()
//
// # Error Types
//
//   - [dispatcher.RangeError], [dispatcher.TimeoutError]: cause-chain error
//     types for range and timeout failures; no operation in this module
//     returns them (an invalid queue id yields [dispatcher.ErrInvalidQueueID],
//     Drain reports a timeout through its bool result and Future.WaitFor
//     through its WaitState)
//   - [future.Error] (see future/errors.go): BrokenPromise, already-satisfied,
//     and other future lifecycle violations
//
// All error types implement [error] and [errors.Unwrap].
package quantum
