package sequencer

// sequencerOptions holds the resolved configuration for a Sequencer (spec
// §6: "bucket count, key hash, key equality, allocator, exception
// callback" — of these, only the exception callback has any Go-idiomatic
// analogue; bucket count/hash/equality/allocator are a C++-specific
// hashmap-tuning surface with no equivalent knob over Go's built-in map,
// and allocator injection has no equivalent over Go's garbage collector).
type sequencerOptions struct {
	exceptionCallback func(err error, opaque any)
}

// Option configures a Sequencer instance.
type Option interface {
	applySequencer(*sequencerOptions) error
}

type optionImpl struct {
	applyFunc func(*sequencerOptions) error
}

func (o *optionImpl) applySequencer(opts *sequencerOptions) error {
	return o.applyFunc(opts)
}

// WithExceptionCallback installs the callback invoked when a sequenced
// task's closure returns a non-nil error, receiving the opaque pointer
// supplied at enqueue time (spec §6/§4.10). Wrap it in
// RateLimitedExceptionCallback to bound how often a hot failing key can
// flood it.
func WithExceptionCallback(cb func(err error, opaque any)) Option {
	return &optionImpl{func(opts *sequencerOptions) error {
		opts.exceptionCallback = cb
		return nil
	}}
}

func resolveOptions(opts []Option) (*sequencerOptions, error) {
	cfg := &sequencerOptions{}
	for _, o := range opts {
		if o == nil {
			continue
		}
		if err := o.applySequencer(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
