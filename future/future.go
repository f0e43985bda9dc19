package future

import "time"

// Future is the read side of a (Promise, Future) pair.
type Future[T any] struct {
	state     *SharedState[T]
	retrieved bool
}

// Valid reports whether the Future has a backing state that has not yet
// been Retrieved.
func (f *Future[T]) Valid() bool {
	if f == nil || f.state == nil {
		return false
	}
	f.state.mu.Lock()
	defer f.state.mu.Unlock()
	return f.state.status != Retrieved
}

// Get blocks the calling OS thread until the one-shot value is available,
// then returns it, transitioning the state to Retrieved. A second call
// returns ErrFutureAlreadyRetrieved. If the producer set an exception, or
// the promise was broken, that error is returned instead of a value.
//
// Get is a genuine OS-thread block (via sync.Cond); callers running inside
// a coroutine slot should instead suspend via the coroutine-aware adapter
// (dispatcher.Await), which polls Ready, yielding between polls, and then
// calls Get rather than blocking the worker, per spec §5's "suspension points ... waiting on a future."
func (f *Future[T]) Get() (T, error) {
	if f == nil || f.state == nil {
		var zero T
		return zero, ErrNoState
	}
	s := f.state
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.status == Unsatisfied {
		s.cond.Wait()
	}

	var zero T
	switch s.status {
	case Retrieved:
		return zero, ErrFutureAlreadyRetrieved
	case BrokenPromise:
		return zero, ErrBrokenPromise
	case Satisfied:
		s.status = Retrieved
		if s.err != nil {
			return zero, s.err
		}
		return s.value, nil
	default:
		return zero, ErrBufferingData
	}
}

// GetRef behaves like Get but leaves the state Satisfied, allowing repeated
// reads, per spec §4.9 ("getRef() ... leaves the state Satisfied").
func (f *Future[T]) GetRef() (T, error) {
	if f == nil || f.state == nil {
		var zero T
		return zero, ErrNoState
	}
	s := f.state
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.status == Unsatisfied {
		s.cond.Wait()
	}

	var zero T
	switch s.status {
	case Retrieved, Satisfied:
		if s.err != nil {
			return zero, s.err
		}
		return s.value, nil
	case BrokenPromise:
		return zero, ErrBrokenPromise
	default:
		return zero, ErrBufferingData
	}
}

// WaitState is the result of WaitFor.
type WaitState int

const (
	// WaitReady indicates the future settled before the deadline.
	WaitReady WaitState = iota
	// WaitTimeout indicates the deadline elapsed first; the producing task
	// is not affected (spec §5: "waitFor timeouts ... do not cancel the
	// producing task").
	WaitTimeout
)

// WaitFor blocks up to d for the future to settle, never raising on
// timeout (spec §7).
func (f *Future[T]) WaitFor(d time.Duration) WaitState {
	if f == nil || f.state == nil {
		return WaitTimeout
	}
	if d <= 0 {
		if f.state.ready() {
			return WaitReady
		}
		return WaitTimeout
	}

	done := make(chan struct{})
	go func() {
		f.state.mu.Lock()
		for f.state.status == Unsatisfied {
			f.state.cond.Wait()
		}
		f.state.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return WaitReady
	case <-time.After(d):
		return WaitTimeout
	}
}

// Ready is a non-blocking check, used by the coroutine-aware adapter to
// poll instead of parking an OS thread on Get.
func (f *Future[T]) Ready() bool {
	if f == nil || f.state == nil {
		return false
	}
	return f.state.ready()
}

// TryGet performs a non-blocking Get: ok is false if the state is not yet
// settled (Unsatisfied, or BufferingData with nothing left buffered).
func (f *Future[T]) TryGet() (v T, err error, ok bool) {
	if !f.Ready() {
		return v, nil, false
	}
	v, err = f.Get()
	return v, err, true
}

// Pull consumes the next element of a streaming Future, blocking the
// calling OS thread until one is available or the buffer is closed.
// closed reports end-of-stream (BufferClosed with nothing left buffered).
func (f *Future[T]) Pull() (v T, closed bool, err error) {
	if f == nil || f.state == nil {
		return v, false, ErrNoState
	}
	s := f.state
	if !s.stream {
		return v, false, ErrBufferingData
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && s.status != BufferClosed && s.status != BrokenPromise {
		s.cond.Wait()
	}

	if len(s.buf) > 0 {
		v = s.buf[0]
		s.buf = s.buf[1:]
		if len(s.buf) == 0 && s.status == BufferClosed {
			s.status = Retrieved
		}
		return v, false, nil
	}
	if s.status == BrokenPromise {
		return v, false, ErrBrokenPromise
	}
	s.status = Retrieved
	return v, true, nil
}
