package task

// Outcome is what a worker observed when a task's closure returned (spec
// §4.4): used to decide how to walk the continuation chain.
type Outcome int

const (
	// OutcomeSuccess: the closure returned nil.
	OutcomeSuccess Outcome = iota
	// OutcomeError: the closure returned a non-nil error (including a
	// recovered panic, see internal/coro.PanicError).
	OutcomeError
)

// Advance walks the continuation chain from t given how it finished,
// returning the next task to enqueue (or nil if the chain ends here) and
// terminating every task skipped along the way, per spec §4.4:
//
//   - Success: go to Next; if Next.Type == ErrorHandler, terminate it
//     without running it and go to *its* Next instead.
//   - Error: walk forward, terminating every task that is not an
//     ErrorHandler or Final, until one of those is found (or the chain
//     ends).
//
// A task of Type Final is never skipped: on both paths Advance stops at it
// and returns it, whatever the outcome of the task before it.
func Advance(t *Task, outcome Outcome) *Task {
	switch outcome {
	case OutcomeSuccess:
		next := t.Next
		if next == nil {
			return nil
		}
		if next.Type == ErrorHandler {
			next.Terminate()
			next.ClearCLS()
			return Advance(next, OutcomeSuccess)
		}
		return next

	default: // OutcomeError
		cur := t.Next
		for cur != nil {
			if cur.Type == ErrorHandler || cur.Type == Final {
				return cur
			}
			cur.Terminate()
			cur.ClearCLS()
			cur = cur.Next
		}
		return nil
	}
}

// Link appends next onto the end of t's chain, setting both the forward
// and backward pointers, and inheriting t's QueueID unless next
// already specifies one (spec §4.4: "continuations are posted to the same
// queue as the first task in the chain unless explicitly retargeted").
func Link(t, next *Task) {
	t.Next = next
	next.Prev = t
	if next.QueueID == AnyQueue {
		next.QueueID = t.QueueID
	}
}

// Head walks Prev links back to the first task in the chain.
func Head(t *Task) *Task {
	for t.Prev != nil {
		t = t.Prev
	}
	return t
}
