// Package dispatcher implements spec §4.7: the coroutine/I/O worker pool
// fabric, the public post/then/onError/finally/end submission API, and the
// dispatcher-wide lifecycle (drain/terminate).
package dispatcher

import (
	"errors"
	"fmt"
)

// Submission errors (spec §7): synchronous failures returned directly from
// Post/PostFirst/PostAsyncIo rather than surfaced through a future.
// ErrInvalidRange and ErrInvalidTimeout are not returned by any operation:
// an invalid any-range falls back to the full range, and Drain reports a
// timeout through its bool result.
var (
	ErrInvalidQueueID      = errors.New("dispatcher: invalid queue id")
	ErrInvalidRange        = errors.New("dispatcher: invalid coroutine any-range")
	ErrInvalidTimeout      = errors.New("dispatcher: invalid timeout")
	ErrDispatcherDraining  = errors.New("dispatcher: draining, post rejected")
	ErrDispatcherTerminated = errors.New("dispatcher: terminated, post rejected")
)

// RangeError reports a value outside its documented domain, modeled on
// eventloop/errors.go's RangeError.
type RangeError struct {
	Cause   error
	Message string
}

func (e *RangeError) Error() string {
	if e.Message == "" {
		return "dispatcher: range error"
	}
	return e.Message
}

func (e *RangeError) Unwrap() error { return e.Cause }

// TimeoutError reports a drain/wait that exceeded its configured timeout,
// modeled on eventloop/errors.go's TimeoutError.
type TimeoutError struct {
	Cause   error
	Message string
}

func (e *TimeoutError) Error() string {
	if e.Message == "" {
		return "dispatcher: operation timed out"
	}
	return e.Message
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// WrapError wraps an error with a message and cause chain, matching
// eventloop/errors.go's WrapError so errors.Is(result, cause) holds.
func WrapError(message string, cause error) error {
	return fmt.Errorf("%s: %w", message, cause)
}
