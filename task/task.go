// Package task implements the execution-engine data model of spec §3/§4.4:
// Task and IoTask identity, the Suspended/Running/Terminated state machine,
// continuation-chain linkage, coroutine-local storage and task id
// rollover. It does not itself run coroutines — that is internal/coro's
// job — nor does it own a queue — that is package queue's. Task is the
// record the rest of the engine operates on.
package task

import "sync"

// Type tags a task's role in a continuation chain (spec §3).
type Type int

const (
	// First is the head of a continuation chain.
	First Type = iota
	// Continuation runs after a prior task's success.
	Continuation
	// ErrorHandler runs after a prior task's error; skipped (terminated
	// without running) when reached via a Success transition.
	ErrorHandler
	// Final runs unconditionally, success or error.
	Final
	// Standalone is a single task with no chain.
	Standalone
	// IO marks an IoTask (no coroutine stack, no continuation chain).
	IO
)

// String implements fmt.Stringer.
func (t Type) String() string {
	switch t {
	case First:
		return "First"
	case Continuation:
		return "Continuation"
	case ErrorHandler:
		return "ErrorHandler"
	case Final:
		return "Final"
	case Standalone:
		return "Standalone"
	case IO:
		return "IO"
	default:
		return "Unknown"
	}
}

// AnyQueue is the sentinel queue index meaning "let the dispatcher choose"
// (spec §4.5/§4.7).
const AnyQueue = -1

// Same is the sentinel queue index meaning "the posting task's own queue"
// (spec §6). It is only meaningful at a Context-scoped post (the Context
// knows which queue its own task is pinned to); dispatcher.Dispatcher's
// top-level Post/PostFirst have no posting task to resolve it against and
// reject it like any other invalid index.
const Same = -2

// Func is a task's entry closure. The ctx argument is whatever the owning
// queue's ContextFactory returns (the dispatcher passes the running
// *coro.Handle, which its wrapper attaches to a *dispatcher.Context);
// it is typed any here so this package does not import dispatcher, which
// in turn imports task to build the continuation chain — Func is the
// deliberate type-erasure boundary between the two.
type Func func(ctx any) error

// Task is a single coroutine task (spec §3's "Task (coroutine task)").
type Task struct {
	ID           int64
	Type         Type
	HighPriority bool
	QueueID      int // AnyQueue or a valid index

	state *fastState

	Fn Func

	// Next is the forward continuation link. Prev is the backward pointer,
	// used only to walk the chain from an arbitrary task; both are ordinary
	// Go pointers, so either one keeps its target reachable.
	Next *Task
	Prev *Task

	clsMu sync.Mutex
	cls   map[string]any
}

// New creates a Task with the given id, type and entry closure. QueueID
// defaults to AnyQueue; callers set it explicitly for a pinned post.
func New(id int64, typ Type, fn Func) *Task {
	return &Task{
		ID:      id,
		Type:    typ,
		QueueID: AnyQueue,
		state:   newFastState(),
		Fn:      fn,
	}
}

// State returns the task's current lifecycle state.
func (t *Task) State() State { return t.state.Load() }

// TryRun transitions Suspended -> Running; false if the task was not
// Suspended (e.g. concurrently terminated).
func (t *Task) TryRun() bool { return t.state.TryTransition(Suspended, Running) }

// Suspend transitions Running -> Suspended (spec §4.4: yield/block/sleep
// return the task to Suspended without terminating it).
func (t *Task) Suspend() bool { return t.state.TryTransition(Running, Suspended) }

// Terminate transitions Running or Suspended -> Terminated; the Suspended
// case is how Advance retires chain tasks it skips without running them.
func (t *Task) Terminate() bool {
	return t.state.TryTransition(Running, Terminated) || t.state.TryTransition(Suspended, Terminated)
}

// IsTerminated reports whether the task has finished.
func (t *Task) IsTerminated() bool { return t.state.IsTerminal() }

// SetCLS stores a coroutine-local value under key, creating the map on
// first use. Values are user-owned: the map only holds the pointer/value,
// never manages the pointee's lifetime (spec §3).
func (t *Task) SetCLS(key string, value any) {
	t.clsMu.Lock()
	defer t.clsMu.Unlock()
	if t.cls == nil {
		t.cls = make(map[string]any)
	}
	t.cls[key] = value
}

// GetCLS retrieves a coroutine-local value, ok reporting presence.
func (t *Task) GetCLS(key string) (any, bool) {
	t.clsMu.Lock()
	defer t.clsMu.Unlock()
	v, ok := t.cls[key]
	return v, ok
}

// DeleteCLS removes a coroutine-local value.
func (t *Task) DeleteCLS(key string) {
	t.clsMu.Lock()
	defer t.clsMu.Unlock()
	delete(t.cls, key)
}

// ClearCLS frees the entire coroutine-local store (spec §3: "freed on task
// destruction"), called once a task transitions to Terminated.
func (t *Task) ClearCLS() {
	t.clsMu.Lock()
	defer t.clsMu.Unlock()
	t.cls = nil
}

// IoTask is spec §3's IoTask: identical identity/flags to Task, but a
// plain closure with no coroutine stack and no continuation chain — it
// runs to completion on an I/O worker in one shot.
type IoTask struct {
	ID           int64
	HighPriority bool
	QueueID      int

	Fn func() error
}

// NewIoTask creates an IoTask with the given id and closure.
func NewIoTask(id int64, fn func() error) *IoTask {
	return &IoTask{ID: id, QueueID: AnyQueue, Fn: fn}
}
