package spinlock

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRWSpinlock_MultipleReaders(t *testing.T) {
	lk := NewRWSpinlock(DefaultBackoffConfig())
	require.True(t, lk.TryLockRead())
	require.True(t, lk.TryLockRead())
	require.Equal(t, 2, lk.NumReaders())
	require.False(t, lk.TryLockWrite())
	lk.UnlockRead()
	lk.UnlockRead()
	require.Equal(t, 0, lk.NumReaders())
	require.False(t, lk.IsLocked())
}

func TestRWSpinlock_WriterExclusive(t *testing.T) {
	lk := NewRWSpinlock(DefaultBackoffConfig())
	require.True(t, lk.TryLockWrite())
	require.False(t, lk.TryLockRead())
	require.False(t, lk.TryLockWrite())
	lk.UnlockWrite()
	require.True(t, lk.TryLockRead())
	lk.UnlockRead()
}

func TestRWSpinlock_UpgradeFastPath(t *testing.T) {
	lk := NewRWSpinlock(DefaultBackoffConfig())
	require.True(t, lk.TryLockRead())
	require.Equal(t, 1, lk.NumReaders())
	lk.Upgrade()
	require.Equal(t, 0, lk.NumPendingWriters())
	require.Equal(t, -1, func() int { _, l := split(lk.v.Load()); return int(l) }())
	lk.UnlockWrite()
}

// TestRWSpinlock_UpgradeUnderContention exercises §8 scenario 6: two reader
// locks are taken and released, then 10 goroutines each take a reader and
// upgrade; afterwards the lock must be fully drained.
func TestRWSpinlock_UpgradeUnderContention(t *testing.T) {
	lk := NewRWSpinlock(BackoffConfig{Policy: BackoffExponential, MinSpins: 1, MaxSpins: 64, MaxYields: 4})
	require.True(t, lk.TryLockRead())
	require.True(t, lk.TryLockRead())
	lk.UnlockRead()
	lk.UnlockRead()

	const n = 10
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			lk.LockRead()
			lk.Upgrade()
			lk.UnlockWrite()
		}()
	}
	wg.Wait()

	require.False(t, lk.IsLocked())
	require.Equal(t, 0, lk.NumReaders())
	require.Equal(t, 0, lk.NumPendingWriters())
}

func TestRWSpinlock_ReadUnlockWithoutLockPanics(t *testing.T) {
	lk := NewRWSpinlock(DefaultBackoffConfig())
	require.Panics(t, lk.UnlockRead)
}

func TestRWSpinlock_WriteUnlockWithoutLockPanics(t *testing.T) {
	lk := NewRWSpinlock(DefaultBackoffConfig())
	require.Panics(t, lk.UnlockWrite)
}
