package sequencer

import "errors"

var (
	// ErrNoKeys is returned by Enqueue when called with an empty key set;
	// use EnqueueUniversal for tasks with no sequencing key.
	ErrNoKeys = errors.New("sequencer: enqueue requires at least one key")

	// ErrDraining is returned by Enqueue/EnqueueUniversal while a Drain is
	// in flight (spec §4.10).
	ErrDraining = errors.New("sequencer: draining, enqueue rejected")
)
