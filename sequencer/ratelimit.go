package sequencer

import (
	"github.com/joeycumines/go-catrate"
)

// RateLimitedExceptionCallback wraps cb so it is invoked at most the rate
// allowed by limiter for categorize's result (spec §4.10's exception
// callback, bounded per SPEC_FULL.md's domain-stack wiring for
// go-catrate): a hot key whose tasks keep failing the same way no longer
// floods the callback on every single failure.
func RateLimitedExceptionCallback(limiter *catrate.Limiter, categorize func(err error, opaque any) any, cb func(err error, opaque any)) func(err error, opaque any) {
	return func(err error, opaque any) {
		if _, ok := limiter.Allow(categorize(err, opaque)); !ok {
			return
		}
		cb(err, opaque)
	}
}
