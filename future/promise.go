package future

import "runtime"

// Promise is the write side of a (Promise, Future) pair.
type Promise[T any] struct {
	state *SharedState[T]
	done  bool // true once Set/SetException/drop has run, guards double-break
}

// SharedState.stream, if true, makes Promise.Push/CloseBuffer and
// Future.Pull usable on the pair; New creates a one-shot state (use
// NewStream for a stream).

// New creates a one-shot Promise/Future pair.
func New[T any]() (*Promise[T], *Future[T]) {
	s := newSharedState[T](false)
	p := &Promise[T]{state: s}
	runtime.SetFinalizer(p, (*Promise[T]).finalize)
	return p, &Future[T]{state: s}
}

// NewStream creates a streaming Promise/Future pair: Push appends, Pull
// consumes, CloseBuffer ends the stream.
func NewStream[T any]() (*Promise[T], *Future[T]) {
	s := newSharedState[T](true)
	p := &Promise[T]{state: s}
	runtime.SetFinalizer(p, (*Promise[T]).finalize)
	return p, &Future[T]{state: s}
}

// Set satisfies the promise with v. Returns ErrPromiseAlreadySatisfied if
// already settled.
func (p *Promise[T]) Set(v T) error {
	err := p.state.set(v)
	if err == nil {
		p.settle()
	}
	return err
}

// SetException stores err as the promise's failure.
func (p *Promise[T]) SetException(err error) error {
	setErr := p.state.setException(err)
	if setErr == nil {
		p.settle()
	}
	return setErr
}

// Push appends v to a streaming promise's buffer.
func (p *Promise[T]) Push(v T) error {
	return p.state.push(v)
}

// CloseBuffer ends a streaming promise (no more Push calls will be
// accepted); already-buffered elements remain readable.
func (p *Promise[T]) CloseBuffer() error {
	err := p.state.closeBuffer()
	if err == nil {
		p.settle()
	}
	return err
}

// Break explicitly abandons the promise without a value, equivalent to the
// source's "destroying the promise without setting a value" (spec §4.9);
// transitions Unsatisfied -> BrokenPromise. Safe to call more than once, and
// a no-op if already settled.
func (p *Promise[T]) Break() {
	p.state.breakPromise()
	p.settle()
}

func (p *Promise[T]) settle() {
	if p.done {
		return
	}
	p.done = true
	runtime.SetFinalizer(p, nil)
}

// finalize is invoked by the garbage collector if a Promise is dropped
// without Set/SetException/CloseBuffer/Break ever being called, entering
// BrokenPromise per spec §4.9/§7.
func (p *Promise[T]) finalize() {
	p.state.breakPromise()
}
