package queue

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bloomberg/quantum-sub000/internal/coro"
	"github.com/bloomberg/quantum-sub000/task"
)

// plainFactory hands the raw coro.Handle straight through, standing in for
// dispatcher.Context in these lower-level tests.
func plainFactory(h *coro.Handle, t *task.Task) any { return h }

type routerFunc func(t *task.Task)

func (f routerFunc) Route(t *task.Task) { f(t) }

func TestTaskQueue_RunsStandaloneTask(t *testing.T) {
	q := New(0, plainFactory, routerFunc(func(*task.Task) {}))
	go q.Run()
	defer q.Terminate()

	var ran atomic.Bool
	done := make(chan struct{})
	tk := task.New(-1, task.Standalone, func(ctx any) error {
		ran.Store(true)
		close(done)
		return nil
	})
	require.NoError(t, q.Post(tk))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
	require.True(t, ran.Load())
}

func TestTaskQueue_YieldThenComplete(t *testing.T) {
	q := New(0, plainFactory, routerFunc(func(*task.Task) {}))
	go q.Run()
	defer q.Terminate()

	done := make(chan struct{})
	steps := 0
	tk := task.New(-1, task.Standalone, func(ctx any) error {
		h := ctx.(*coro.Handle)
		steps++
		h.Yield()
		steps++
		close(done)
		return nil
	})
	require.NoError(t, q.Post(tk))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never completed")
	}
	require.Equal(t, 2, steps)
}

func TestTaskQueue_ErrorRoutesToErrorHandler(t *testing.T) {
	routed := make(chan *task.Task, 1)
	q := New(0, plainFactory, routerFunc(func(nt *task.Task) { routed <- nt }))
	go q.Run()
	defer q.Terminate()

	first := task.New(-1, task.First, func(ctx any) error { return errors.New("boom") })
	eh := task.New(-2, task.ErrorHandler, func(ctx any) error { return nil })
	task.Link(first, eh)

	require.NoError(t, q.Post(first))

	select {
	case nt := <-routed:
		require.Same(t, eh, nt)
	case <-time.After(time.Second):
		t.Fatal("continuation never routed")
	}
}

func TestTaskQueue_SuccessSkipsErrorHandler(t *testing.T) {
	routed := make(chan *task.Task, 1)
	q := New(0, plainFactory, routerFunc(func(nt *task.Task) { routed <- nt }))
	go q.Run()
	defer q.Terminate()

	first := task.New(-1, task.First, func(ctx any) error { return nil })
	eh := task.New(-2, task.ErrorHandler, func(ctx any) error { return nil })
	cont := task.New(-3, task.Continuation, func(ctx any) error { return nil })
	task.Link(first, eh)
	task.Link(eh, cont)

	require.NoError(t, q.Post(first))

	select {
	case nt := <-routed:
		require.Same(t, cont, nt)
		require.True(t, eh.IsTerminated())
	case <-time.After(time.Second):
		t.Fatal("continuation never routed")
	}
}

func TestTaskQueue_BlockedTaskEventuallyRuns(t *testing.T) {
	q := New(0, plainFactory, routerFunc(func(*task.Task) {}))
	go q.Run()
	defer q.Terminate()

	var unblock atomic.Bool
	done := make(chan struct{})
	tk := task.New(-1, task.Standalone, func(ctx any) error {
		h := ctx.(*coro.Handle)
		h.Block(func() bool { return unblock.Load() })
		close(done)
		return nil
	})
	require.NoError(t, q.Post(tk))

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("task completed before being unblocked")
	default:
	}

	unblock.Store(true)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocked task never resumed")
	}
}

func TestTaskQueue_HighPriorityPostsToHead(t *testing.T) {
	q := New(0, plainFactory, routerFunc(func(*task.Task) {}))
	// Don't start Run yet: inspect waitQueue ordering directly.
	low := task.New(-1, task.Standalone, nil)
	high := task.New(-2, task.Standalone, nil)
	high.HighPriority = true

	require.NoError(t, q.Post(low))
	require.NoError(t, q.Post(high))

	q.waitSp.Lock()
	require.Same(t, high, q.waitQueue[0])
	require.Same(t, low, q.waitQueue[1])
	q.waitSp.Unlock()
}

func TestTaskQueue_PostAfterTerminateFails(t *testing.T) {
	q := New(0, plainFactory, routerFunc(func(*task.Task) {}))
	q.Terminate()
	err := q.Post(task.New(-1, task.Standalone, nil))
	require.ErrorIs(t, err, ErrTerminated)
}

func TestTaskQueue_SharedAnyQueueDrainedByListener(t *testing.T) {
	shared := New(-1, plainFactory, routerFunc(func(*task.Task) {}))
	shared.MarkShared()
	worker := New(0, plainFactory, routerFunc(func(*task.Task) {}))
	worker.AttachShared(shared)

	go worker.Run()
	defer worker.Terminate()

	done := make(chan struct{})
	tk := task.New(-1, task.Standalone, func(ctx any) error {
		close(done)
		return nil
	})
	require.NoError(t, shared.Post(tk))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener never drained the shared any-queue")
	}
}
