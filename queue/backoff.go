package queue

import "time"

// PollBackoffPolicy selects how a load-balanced IoQueue worker's sleep
// interval grows between unsuccessful polls of the shared queue bank
// (spec §4.6: "a backoff schedule (linear or exponential, bounded by a
// configured number of backoffs)").
type PollBackoffPolicy int

const (
	// PollBackoffLinear grows the sleep interval by a fixed step.
	PollBackoffLinear PollBackoffPolicy = iota
	// PollBackoffExponential doubles the sleep interval each round.
	PollBackoffExponential
)

// PollBackoffConfig bounds a load-balanced worker's idle-polling backoff.
type PollBackoffConfig struct {
	Policy      PollBackoffPolicy
	MinInterval time.Duration
	MaxInterval time.Duration
	MaxBackoffs int // 0 means unbounded: keeps backing off up to MaxInterval
}

// DefaultPollBackoffConfig returns exponential growth from 1ms to 100ms.
func DefaultPollBackoffConfig() PollBackoffConfig {
	return PollBackoffConfig{
		Policy:      PollBackoffExponential,
		MinInterval: time.Millisecond,
		MaxInterval: 100 * time.Millisecond,
	}
}

type pollBackoff struct {
	cfg    PollBackoffConfig
	cur    time.Duration
	rounds int
}

func newPollBackoff(cfg PollBackoffConfig) *pollBackoff {
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = time.Millisecond
	}
	if cfg.MaxInterval < cfg.MinInterval {
		cfg.MaxInterval = cfg.MinInterval
	}
	return &pollBackoff{cfg: cfg, cur: cfg.MinInterval}
}

// sleep backs off once: sleeps the current interval, then grows it
// per the configured policy, bounded by MaxInterval and (optionally)
// MaxBackoffs rounds.
func (b *pollBackoff) sleep() {
	time.Sleep(b.cur)
	if b.cfg.MaxBackoffs > 0 && b.rounds >= b.cfg.MaxBackoffs {
		return
	}
	b.rounds++
	switch b.cfg.Policy {
	case PollBackoffLinear:
		b.cur += b.cfg.MinInterval
	case PollBackoffExponential:
		b.cur *= 2
	}
	if b.cur > b.cfg.MaxInterval {
		b.cur = b.cfg.MaxInterval
	}
}

func (b *pollBackoff) reset() {
	b.cur = b.cfg.MinInterval
	b.rounds = 0
}
