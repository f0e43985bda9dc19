//go:build linux || darwin

package osyield

import "golang.org/x/sys/unix"

func osYield() {
	// Best-effort: sched_yield(2) never fails in a way we can act on.
	_ = unix.SchedYield()
}
