package sequencer

// KeyStats reports FIFO-depth bookkeeping for one sequencing key.
type KeyStats struct {
	Key     any
	Posted  int64
	Pending int64
}

// Stats is a point-in-time snapshot across every tracked key plus the
// universal barrier queue (SPEC_FULL.md's "per-key and overall statistics"
// supplement to spec §4.10).
type Stats struct {
	Keys             []KeyStats
	UniversalPosted  int64
	UniversalPending int64
}

// Stats returns a snapshot of current posted/pending counters.
func (s *Sequencer) Stats() Stats {
	s.mu.Lock(0, nil)
	defer s.mu.Unlock()

	out := Stats{
		Keys:             make([]KeyStats, 0, len(s.keys)),
		UniversalPosted:  s.universalPosted.Load(),
		UniversalPending: int64(len(s.universal)),
	}
	for k, rec := range s.keys {
		out.Keys = append(out.Keys, KeyStats{
			Key:     k,
			Posted:  rec.posted.Load(),
			Pending: int64(len(rec.fifo)),
		})
	}
	return out
}
