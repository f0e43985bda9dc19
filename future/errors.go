// Package future implements the shared-state, promise and future types of
// spec §3 ("SharedState<T>") and §4.9. A SharedState is the common backing
// of a (Promise, Future) pair: either a one-shot value or a FIFO stream
// buffer, a waiter list, and an optional stored exception.
package future

import (
	"errors"
	"fmt"
)

// Kind classifies the observable exception kinds of spec §6.
type Kind int

const (
	// KindNoState is returned when a Future has no backing SharedState
	// (e.g. the zero value of Future[T]).
	KindNoState Kind = iota
	// KindPromiseAlreadySatisfied is returned by Promise.Set/SetException
	// when the state has already left Unsatisfied.
	KindPromiseAlreadySatisfied
	// KindPromiseNotSatisfied completes spec §6's taxonomy; no operation in
	// this package returns it, since Get and GetRef wait while the state is
	// still Unsatisfied.
	KindPromiseNotSatisfied
	// KindFutureAlreadyRetrieved is returned by Future.Get when the
	// one-shot value has already been retrieved.
	KindFutureAlreadyRetrieved
	// KindBrokenPromise is returned when the paired Promise was dropped
	// (garbage collected, or explicitly abandoned) before being satisfied.
	KindBrokenPromise
	// KindBufferingData is returned by Pull when called on a one-shot
	// (non-streaming) state, or other stream-only misuse.
	KindBufferingData
	// KindBufferClosed is returned by Push after CloseBuffer.
	KindBufferClosed
)

func (k Kind) String() string {
	switch k {
	case KindNoState:
		return "NoState"
	case KindPromiseAlreadySatisfied:
		return "PromiseAlreadySatisfied"
	case KindPromiseNotSatisfied:
		return "PromiseNotSatisfied"
	case KindFutureAlreadyRetrieved:
		return "FutureAlreadyRetrieved"
	case KindBrokenPromise:
		return "BrokenPromise"
	case KindBufferingData:
		return "BufferingData"
	case KindBufferClosed:
		return "BufferClosed"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is the concrete error type raised for every Kind in spec §6's
// future-error taxonomy, modeled on eventloop/errors.go's cause-chain style.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("future: %s: %v", e.Kind, e.Cause)
	}
	return fmt.Sprintf("future: %s", e.Kind)
}

// Unwrap supports errors.Is/errors.As against Cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error with the same Kind, so that
// errors.Is(err, &Error{Kind: KindBrokenPromise}) works regardless of Cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return t.Kind == e.Kind
	}
	return false
}

func newErr(kind Kind) error {
	return &Error{Kind: kind}
}

// Sentinel errors for convenient errors.Is comparisons without constructing
// an *Error value.
var (
	ErrNoState                = newErr(KindNoState)
	ErrPromiseAlreadySatisfied = newErr(KindPromiseAlreadySatisfied)
	ErrPromiseNotSatisfied     = newErr(KindPromiseNotSatisfied)
	ErrFutureAlreadyRetrieved  = newErr(KindFutureAlreadyRetrieved)
	ErrBrokenPromise           = newErr(KindBrokenPromise)
	ErrBufferingData           = newErr(KindBufferingData)
	ErrBufferClosed            = newErr(KindBufferClosed)
)
