//go:build linux

package affinity

import "golang.org/x/sys/unix"

func pin(core int) bool {
	if core < 0 {
		return false
	}
	var set unix.CPUSet
	set.Zero()
	set.Set(core)
	return unix.SchedSetaffinity(0, &set) == nil
}
