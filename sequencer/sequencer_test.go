package sequencer

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bloomberg/quantum-sub000/dispatcher"
	"github.com/bloomberg/quantum-sub000/task"
)

func newTestSequencer(t *testing.T, opts ...Option) (*dispatcher.Dispatcher, *Sequencer) {
	t.Helper()
	d, err := dispatcher.New(dispatcher.WithNumCoroutineThreads(4), dispatcher.WithNumIoThreads(1))
	require.NoError(t, err)
	t.Cleanup(d.Terminate)
	s, err := New(d, opts...)
	require.NoError(t, err)
	return d, s
}

func TestSequencer_FIFOPerKey(t *testing.T) {
	_, s := newTestSequencer(t)

	var mu sync.Mutex
	var order []int

	const n = 50
	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		i := i
		_, err := s.Enqueue([]any{"k"}, false, task.AnyQueue, nil, func(ctx *dispatcher.Context) (any, error) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			done <- struct{}{}
			return nil, nil
		})
		require.NoError(t, err)
	}

	for i := 0; i < n; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("task never ran")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, order, n)
	for i, v := range order {
		require.Equal(t, i, v, "tasks on the same key must run in enqueue order")
	}
}

func TestSequencer_UniversalBarrier_RunsAfterPriorKeyTasksAndBlocksLater(t *testing.T) {
	_, s := newTestSequencer(t)

	var mu sync.Mutex
	var events []string
	record := func(label string) {
		mu.Lock()
		events = append(events, label)
		mu.Unlock()
	}

	block := make(chan struct{})
	doneA1 := make(chan struct{})
	_, err := s.Enqueue([]any{"a"}, false, task.AnyQueue, nil, func(ctx *dispatcher.Context) (any, error) {
		<-block
		record("a1")
		close(doneA1)
		return nil, nil
	})
	require.NoError(t, err)

	doneUniversal := make(chan struct{})
	_, err = s.EnqueueUniversal(false, task.AnyQueue, nil, func(ctx *dispatcher.Context) (any, error) {
		record("universal")
		close(doneUniversal)
		return nil, nil
	})
	require.NoError(t, err)

	doneA2 := make(chan struct{})
	_, err = s.Enqueue([]any{"a"}, false, task.AnyQueue, nil, func(ctx *dispatcher.Context) (any, error) {
		record("a2")
		close(doneA2)
		return nil, nil
	})
	require.NoError(t, err)

	select {
	case <-doneUniversal:
		t.Fatal("universal task ran before key \"a\"'s prior task completed")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	<-doneA1
	<-doneUniversal
	<-doneA2

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"a1", "universal", "a2"}, events)
}

func TestSequencer_MultiKeyTask_WaitsForAllKeys(t *testing.T) {
	_, s := newTestSequencer(t)

	block := make(chan struct{})
	doneX := make(chan struct{})
	_, err := s.Enqueue([]any{"x"}, false, task.AnyQueue, nil, func(ctx *dispatcher.Context) (any, error) {
		<-block
		close(doneX)
		return nil, nil
	})
	require.NoError(t, err)

	var ran atomic.Bool
	doneBoth := make(chan struct{})
	_, err = s.Enqueue([]any{"x", "y"}, false, task.AnyQueue, nil, func(ctx *dispatcher.Context) (any, error) {
		ran.Store(true)
		close(doneBoth)
		return nil, nil
	})
	require.NoError(t, err)

	select {
	case <-doneBoth:
		t.Fatal("multi-key task ran before one of its keys was clear")
	case <-time.After(50 * time.Millisecond):
	}
	require.False(t, ran.Load())

	close(block)
	<-doneX
	<-doneBoth
	require.True(t, ran.Load())
}

func TestSequencer_EnqueueRequiresAtLeastOneKey(t *testing.T) {
	_, s := newTestSequencer(t)
	_, err := s.Enqueue(nil, false, task.AnyQueue, nil, func(ctx *dispatcher.Context) (any, error) {
		return nil, nil
	})
	require.ErrorIs(t, err, ErrNoKeys)
}

func TestSequencer_Drain(t *testing.T) {
	_, s := newTestSequencer(t)

	var ran atomic.Bool
	_, err := s.Enqueue([]any{"k"}, false, task.AnyQueue, nil, func(ctx *dispatcher.Context) (any, error) {
		ran.Store(true)
		return nil, nil
	})
	require.NoError(t, err)

	require.True(t, s.Drain(time.Second, false))
	require.True(t, ran.Load())

	_, err = s.Enqueue([]any{"k"}, false, task.AnyQueue, nil, func(ctx *dispatcher.Context) (any, error) {
		return nil, nil
	})
	require.NoError(t, err, "draining flag must be cleared after a non-final Drain")
}

func TestSequencer_TrimSequenceKeys(t *testing.T) {
	_, s := newTestSequencer(t)

	done := make(chan struct{})
	_, err := s.Enqueue([]any{"a", "b"}, false, task.AnyQueue, nil, func(ctx *dispatcher.Context) (any, error) {
		close(done)
		return nil, nil
	})
	require.NoError(t, err)
	<-done

	require.Eventually(t, func() bool {
		return s.TrimSequenceKeys() == 0
	}, time.Second, time.Millisecond)
}

func TestSequencer_ExceptionCallbackInvokedOnError(t *testing.T) {
	var mu sync.Mutex
	var gotErr error
	var gotOpaque any
	called := make(chan struct{})

	d, err := dispatcher.New(dispatcher.WithNumCoroutineThreads(1), dispatcher.WithNumIoThreads(1))
	require.NoError(t, err)
	t.Cleanup(d.Terminate)

	s, err := New(d, WithExceptionCallback(func(err error, opaque any) {
		mu.Lock()
		gotErr, gotOpaque = err, opaque
		mu.Unlock()
		close(called)
	}))
	require.NoError(t, err)

	boom := &sentinelErr{"boom"}
	_, err = s.Enqueue([]any{"k"}, false, task.AnyQueue, "tag", func(ctx *dispatcher.Context) (any, error) {
		return nil, boom
	})
	require.NoError(t, err)

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("exception callback never invoked")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, boom, gotErr)
	require.Equal(t, "tag", gotOpaque)
}

type sentinelErr struct{ msg string }

func (e *sentinelErr) Error() string { return e.msg }
