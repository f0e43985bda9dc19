package spinlock

import (
	"math/rand"
	"time"

	"github.com/bloomberg/quantum-sub000/internal/osyield"
)

// BackoffPolicy selects how the spin count grows between successive failed
// compare-exchange attempts, before a spinner gives up spinning and yields
// the OS thread.
type BackoffPolicy int

const (
	// BackoffLinear grows the spin budget by a fixed step each round.
	BackoffLinear BackoffPolicy = iota
	// BackoffExponential doubles the spin budget each round.
	BackoffExponential
	// BackoffEqualStep keeps the spin budget constant (no growth).
	BackoffEqualStep
	// BackoffRandom picks a spin budget uniformly within [min,max] each round.
	BackoffRandom
)

// BackoffConfig bounds the spin/yield/sleep escalation used by both
// [Spinlock] and [RWSpinlock] under contention. The zero value is not valid;
// use [DefaultBackoffConfig].
type BackoffConfig struct {
	// Policy selects how the per-round spin budget grows.
	Policy BackoffPolicy
	// MinSpins is the spin budget for the first round.
	MinSpins int
	// MaxSpins caps the spin budget; once reached, the caller yields the OS
	// thread instead of continuing to spin.
	MaxSpins int
	// MaxYields bounds how many consecutive OS-thread yields are attempted
	// before escalating to SleepDuration. Zero means never sleep.
	MaxYields int
	// SleepDuration is how long to sleep once MaxYields is exceeded.
	SleepDuration time.Duration
}

// DefaultBackoffConfig returns a conservative default: exponential growth
// from 4 to 1024 spins, 100 OS-thread yields, then 1ms sleeps.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Policy:        BackoffExponential,
		MinSpins:      4,
		MaxSpins:      1024,
		MaxYields:     100,
		SleepDuration: time.Millisecond,
	}
}

// backoff is the mutable cursor through a BackoffConfig's escalation used by
// a single contended acquire attempt.
type backoff struct {
	cfg      BackoffConfig
	spins    int
	yields   int
	curSpins int
}

func newBackoff(cfg BackoffConfig) backoff {
	if cfg.MinSpins <= 0 {
		cfg.MinSpins = 1
	}
	if cfg.MaxSpins < cfg.MinSpins {
		cfg.MaxSpins = cfg.MinSpins
	}
	return backoff{cfg: cfg, curSpins: cfg.MinSpins}
}

// spin performs one backoff round: a burst of busy-spins (an empty counting
// loop), then escalates to an
// OS-thread yield once MaxSpins is exceeded, then a bounded sleep once
// MaxYields is exceeded. Returns once the round has backed off.
func (b *backoff) spin() {
	for i := 0; i < b.curSpins; i++ {
		// Busy-spin: deliberately does nothing but occupy the core; Go's
		// cooperative scheduler still gets preemption points via the loop.
	}

	if b.spins < 1<<30 {
		b.spins++
	}

	switch b.cfg.Policy {
	case BackoffLinear:
		b.curSpins += b.cfg.MinSpins
	case BackoffExponential:
		b.curSpins *= 2
	case BackoffEqualStep:
		// no growth
	case BackoffRandom:
		b.curSpins = b.cfg.MinSpins + rand.Intn(b.cfg.MaxSpins-b.cfg.MinSpins+1)
	}
	if b.curSpins > b.cfg.MaxSpins {
		b.curSpins = b.cfg.MaxSpins

		osyield.Yield()
		b.yields++

		if b.cfg.MaxYields > 0 && b.yields > b.cfg.MaxYields {
			time.Sleep(b.cfg.SleepDuration)
			b.yields = 0
		}
	}
}
