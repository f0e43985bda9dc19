// Package affinity provides a best-effort hook for pinning the calling OS
// thread to a single CPU core (spec §4.7: "applies optional thread-to-core
// pinning (modulo hardware concurrency)"). Callers must have already called
// runtime.LockOSThread from the goroutine they want pinned; Pin is a no-op
// on platforms without a supported syscall.
package affinity

// Pin attempts to pin the calling OS thread to core, returning false if the
// platform has no supported mechanism or the call failed. Errors are
// swallowed by design: pinning is explicitly best-effort (spec §4.7), never
// a hard requirement.
func Pin(core int) bool {
	return pin(core)
}
