package task

import "sync/atomic"

// State is a Task's lifecycle position (spec §3/§4.4).
type State uint32

const (
	// Suspended: on a queue, not currently being serviced by a worker.
	Suspended State = iota
	// Running: a worker is currently resuming this task's coroutine.
	Running
	// Terminated: the task has finished (success or error) and will not
	// run again.
	Terminated
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case Suspended:
		return "Suspended"
	case Running:
		return "Running"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// fastState is a cache-line-padded lock-free state machine, the same shape
// as eventloop's FastState, specialized to Task's three-value lifecycle.
type fastState struct { // betteralign:ignore
	_ [64]byte
	v atomic.Uint32
	_ [60]byte
}

func newFastState() *fastState {
	s := &fastState{}
	s.v.Store(uint32(Suspended))
	return s
}

func (s *fastState) Load() State { return State(s.v.Load()) }

func (s *fastState) Store(state State) { s.v.Store(uint32(state)) }

func (s *fastState) TryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

func (s *fastState) IsTerminal() bool { return s.Load() == Terminated }
