package dispatcher

import "time"

// dispatcherOptions holds the resolved configuration for a Dispatcher,
// defaults applied in resolveOptions (spec §6's external-interface table).
type dispatcherOptions struct {
	numCoroutineThreads int
	numIoThreads        int

	pinCoroutineThreadsToCores bool

	loadBalanceSharedIoQueues           bool
	loadBalancePollIntervalMs           int
	loadBalancePollIntervalBackoffPolicy string
	loadBalancePollIntervalNumBackoffs  int

	coroQueueIdRangeForAnyLow  int
	coroQueueIdRangeForAnyHigh int
	coroSharingForAny          bool

	logger Logger
}

// Option configures a Dispatcher instance.
type Option interface {
	applyDispatcher(*dispatcherOptions) error
}

// optionImpl implements Option, mirroring the teacher's loopOptionImpl
// functional-options wrapper.
type optionImpl struct {
	applyFunc func(*dispatcherOptions) error
}

func (o *optionImpl) applyDispatcher(opts *dispatcherOptions) error {
	return o.applyFunc(opts)
}

// WithNumCoroutineThreads sets the coroutine worker count: −1 selects
// hardware concurrency, 0 and any other negative value are coerced to 1,
// else n is used verbatim (spec §4.7/§6).
func WithNumCoroutineThreads(n int) Option {
	return &optionImpl{func(opts *dispatcherOptions) error {
		opts.numCoroutineThreads = n
		return nil
	}}
}

// WithNumIoThreads sets the I/O worker count: values ≤ 0 are coerced to 1
// (spec §4.7/§6).
func WithNumIoThreads(n int) Option {
	return &optionImpl{func(opts *dispatcherOptions) error {
		opts.numIoThreads = n
		return nil
	}}
}

// WithPinCoroutineThreadsToCores enables the best-effort queue-i→core-(i mod
// cores) affinity hook (spec §4.7).
func WithPinCoroutineThreadsToCores(enabled bool) Option {
	return &optionImpl{func(opts *dispatcherOptions) error {
		opts.pinCoroutineThreadsToCores = enabled
		return nil
	}}
}

// WithLoadBalancedSharedIoQueues switches every I/O queue into
// load-balanced (work-stealing) mode instead of dedicated-queue mode (spec
// §4.6).
func WithLoadBalancedSharedIoQueues(enabled bool) Option {
	return &optionImpl{func(opts *dispatcherOptions) error {
		opts.loadBalanceSharedIoQueues = enabled
		return nil
	}}
}

// WithLoadBalancePollInterval sets the base poll interval (milliseconds),
// the backoff policy ("linear" or "exponential"), and the max number of
// backoff rounds (0 = unbounded) for load-balanced I/O queues (spec §6).
func WithLoadBalancePollInterval(baseMs int, policy string, maxBackoffs int) Option {
	return &optionImpl{func(opts *dispatcherOptions) error {
		opts.loadBalancePollIntervalMs = baseMs
		opts.loadBalancePollIntervalBackoffPolicy = policy
		opts.loadBalancePollIntervalNumBackoffs = maxBackoffs
		return nil
	}}
}

// WithCoroSharingForAny enables the shared coroutine any-queue (spec §4.5).
func WithCoroSharingForAny(enabled bool) Option {
	return &optionImpl{func(opts *dispatcherOptions) error {
		opts.coroSharingForAny = enabled
		return nil
	}}
}

// WithCoroAnyRange bounds which queues an Any post may land on when sharing
// is disabled (spec §4.5/§6). An invalid combination (low > high, low < 0,
// or high ≥ numCoroutineQueues) falls back to the full range when an Any
// post is routed (see shortestCoroQueueInRange).
func WithCoroAnyRange(low, high int) Option {
	return &optionImpl{func(opts *dispatcherOptions) error {
		opts.coroQueueIdRangeForAnyLow = low
		opts.coroQueueIdRangeForAnyHigh = high
		return nil
	}}
}

// WithLogger installs a Logger used for internal diagnostics (spec §2.1 of
// SPEC_FULL.md); nil falls back to NewNoOpLogger.
func WithLogger(l Logger) Option {
	return &optionImpl{func(opts *dispatcherOptions) error {
		opts.logger = l
		return nil
	}}
}

func resolveOptions(opts []Option) (*dispatcherOptions, error) {
	cfg := &dispatcherOptions{
		numCoroutineThreads:         -1,
		numIoThreads:                5,
		loadBalancePollIntervalMs:   100,
		loadBalancePollIntervalBackoffPolicy: "linear",
		coroQueueIdRangeForAnyLow:   -1,
		coroQueueIdRangeForAnyHigh:  -1,
	}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o.applyDispatcher(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *dispatcherOptions) loadBalancePollInterval() time.Duration {
	ms := c.loadBalancePollIntervalMs
	if ms <= 0 {
		ms = 100
	}
	return time.Duration(ms) * time.Millisecond
}
