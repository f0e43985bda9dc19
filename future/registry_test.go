package future

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_TrackAndScavengeSettled(t *testing.T) {
	r := NewRegistry[int]()
	p1, _ := New[int]()
	p2, _ := New[int]()
	r.Track(p1)
	r.Track(p2)
	require.Equal(t, 2, r.Len())

	require.NoError(t, p1.Set(1))

	removed := r.Scavenge(10)
	require.Equal(t, 1, removed)
	require.Equal(t, 1, r.Len())
}

func TestRegistry_ScavengeBatchesAcrossCalls(t *testing.T) {
	r := NewRegistry[int]()
	var promises []*Promise[int]
	for i := 0; i < 5; i++ {
		p, _ := New[int]()
		require.NoError(t, p.Set(i))
		promises = append(promises, p)
		r.Track(p)
	}

	total := 0
	for i := 0; i < 5; i++ {
		total += r.Scavenge(1)
	}
	require.Equal(t, 5, total)
	require.Equal(t, 0, r.Len())
}

func TestRegistry_ScavengeNoOpOnEmpty(t *testing.T) {
	r := NewRegistry[int]()
	require.Equal(t, 0, r.Scavenge(10))
}
