package dispatcher

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bloomberg/quantum-sub000/task"
)

func waitFuture[T any](t *testing.T, get func() (T, error)) (T, error) {
	t.Helper()
	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := get()
		done <- result{v, err}
	}()
	select {
	case r := <-done:
		return r.v, r.err
	case <-time.After(2 * time.Second):
		t.Fatal("future never settled")
		var zero T
		return zero, nil
	}
}

func TestDispatcher_PostRunsStandaloneTask(t *testing.T) {
	d, err := New(WithNumCoroutineThreads(2), WithNumIoThreads(1))
	require.NoError(t, err)
	defer d.Terminate()

	f, err := d.Post(task.AnyQueue, false, func(ctx *Context) (any, error) {
		return 42, nil
	})
	require.NoError(t, err)

	v, err := waitFuture(t, f.Get)
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestDispatcher_PostFirstChain_SuccessSkipsErrorHandler(t *testing.T) {
	d, err := New(WithNumCoroutineThreads(1), WithNumIoThreads(1))
	require.NoError(t, err)
	defer d.Terminate()

	var ranThen, ranOnError, ranFinally atomic.Bool

	c, err := d.PostFirst(task.AnyQueue, false, func(ctx *Context) (any, error) {
		return "first", nil
	})
	require.NoError(t, err)
	tail := c.Then(func(ctx *Context) (any, error) {
		ranThen.Store(true)
		return "then", nil
	}).OnError(func(ctx *Context) (any, error) {
		ranOnError.Store(true)
		return nil, nil
	}).Finally(func(ctx *Context) (any, error) {
		ranFinally.Store(true)
		return "done", nil
	})

	f, err := tail.End()
	require.NoError(t, err)

	v, err := waitFuture(t, f.Get)
	require.NoError(t, err)
	require.Equal(t, "done", v)
	require.True(t, ranThen.Load())
	require.False(t, ranOnError.Load())
	require.True(t, ranFinally.Load())
}

func TestDispatcher_PostFirstChain_ErrorRunsErrorHandlerAndFinally(t *testing.T) {
	d, err := New(WithNumCoroutineThreads(1), WithNumIoThreads(1))
	require.NoError(t, err)
	defer d.Terminate()

	boom := errors.New("boom")
	var ranThen, ranOnError, ranFinally atomic.Bool

	c, err := d.PostFirst(task.AnyQueue, false, func(ctx *Context) (any, error) {
		return nil, boom
	})
	require.NoError(t, err)

	tail := c.Then(func(ctx *Context) (any, error) {
		ranThen.Store(true)
		return nil, nil
	}).OnError(func(ctx *Context) (any, error) {
		ranOnError.Store(true)
		return "recovered", nil
	}).Finally(func(ctx *Context) (any, error) {
		ranFinally.Store(true)
		return "done", nil
	})

	f, err := tail.End()
	require.NoError(t, err)

	v, err := waitFuture(t, f.Get)
	require.NoError(t, err)
	require.Equal(t, "done", v)
	require.False(t, ranThen.Load())
	require.True(t, ranOnError.Load())
	require.True(t, ranFinally.Load())
}

func TestDispatcher_PostAsyncIo(t *testing.T) {
	d, err := New(WithNumCoroutineThreads(1), WithNumIoThreads(2))
	require.NoError(t, err)
	defer d.Terminate()

	f, err := d.PostAsyncIo(task.AnyQueue, false, func() (any, error) {
		return 7, nil
	})
	require.NoError(t, err)

	v, err := waitFuture(t, f.Get)
	require.NoError(t, err)
	require.Equal(t, 7, v)
}

func TestDispatcher_AwaitFuture_RoundTripsAcrossCoroAndIo(t *testing.T) {
	d, err := New(WithNumCoroutineThreads(1), WithNumIoThreads(1))
	require.NoError(t, err)
	defer d.Terminate()

	outer, err := d.Post(task.AnyQueue, false, func(ctx *Context) (any, error) {
		ioFuture, err := d.PostAsyncIo(task.AnyQueue, false, func() (any, error) {
			return 33, nil
		})
		if err != nil {
			return nil, err
		}
		v, err := Await(ctx, ioFuture)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
	require.NoError(t, err)

	v, err := waitFuture(t, outer.Get)
	require.NoError(t, err)
	require.Equal(t, 33, v)
}

func TestDispatcher_AnyRouting_SharedQueueAcrossCoroQueues(t *testing.T) {
	d, err := New(WithNumCoroutineThreads(4), WithNumIoThreads(1), WithCoroSharingForAny(true))
	require.NoError(t, err)
	defer d.Terminate()

	var n atomic.Int32
	const total = 20
	type getter interface{ Get() (any, error) }
	gs := make([]getter, 0, total)
	for i := 0; i < total; i++ {
		f, err := d.Post(task.AnyQueue, false, func(ctx *Context) (any, error) {
			n.Add(1)
			return nil, nil
		})
		require.NoError(t, err)
		gs = append(gs, f)
	}
	for _, g := range gs {
		_, err := waitFuture(t, g.Get)
		require.NoError(t, err)
	}
	require.EqualValues(t, total, n.Load())
}

func TestDispatcher_AnyRouting_ShortestQueueInRange_InvalidRangeFallsBackToFull(t *testing.T) {
	d, err := New(WithNumCoroutineThreads(3), WithNumIoThreads(1), WithCoroAnyRange(5, 1))
	require.NoError(t, err)
	defer d.Terminate()

	q := d.shortestCoroQueueInRange()
	require.NotNil(t, q)
	require.GreaterOrEqual(t, q.ID(), 0)
	require.Less(t, q.ID(), 3)
}

func TestDispatcher_DrainWaitsForOutstandingWork(t *testing.T) {
	d, err := New(WithNumCoroutineThreads(1), WithNumIoThreads(1))
	require.NoError(t, err)
	defer d.Terminate()

	release := make(chan struct{})
	_, err = d.Post(task.AnyQueue, false, func(ctx *Context) (any, error) {
		for {
			select {
			case <-release:
				return nil, nil
			default:
				ctx.Yield()
			}
		}
	})
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	require.True(t, d.Drain(time.Second, false))
}

func TestContext_PostSame_PinsToPostingTasksQueue(t *testing.T) {
	d, err := New(WithNumCoroutineThreads(2), WithNumIoThreads(1))
	require.NoError(t, err)
	defer d.Terminate()

	var siblingQueueID atomic.Int64

	outer, err := d.Post(0, false, func(ctx *Context) (any, error) {
		require.Equal(t, 0, ctx.QueueID())

		f, err := ctx.Post(task.Same, false, func(inner *Context) (any, error) {
			siblingQueueID.Store(int64(inner.QueueID()))
			return nil, nil
		})
		require.NoError(t, err)
		_, err = Await(ctx, f)
		require.NoError(t, err)
		return nil, nil
	})
	require.NoError(t, err)

	_, err = waitFuture(t, outer.Get)
	require.NoError(t, err)
	require.EqualValues(t, 0, siblingQueueID.Load())
}

func TestDispatcher_PostRejectedAfterTerminate(t *testing.T) {
	d, err := New(WithNumCoroutineThreads(1), WithNumIoThreads(1))
	require.NoError(t, err)

	d.Terminate()
	d.Terminate() // idempotent

	_, err = d.Post(task.AnyQueue, false, func(ctx *Context) (any, error) {
		return nil, nil
	})
	require.ErrorIs(t, err, ErrDispatcherTerminated)
}
