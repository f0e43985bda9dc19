package syncx

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRWMutex_MultipleReaders(t *testing.T) {
	m := NewRWMutex()
	m.LockRead(nil)
	require.True(t, m.TryLockRead())
	require.Equal(t, 2, m.NumReaders())
	m.UnlockRead()
	m.UnlockRead()
	require.False(t, m.IsLocked())
}

func TestRWMutex_WriterExclusivity(t *testing.T) {
	m := NewRWMutex()
	m.LockWrite(nil)
	require.False(t, m.TryLockRead())
	require.False(t, m.TryLockWrite())
	m.UnlockWrite()
	require.True(t, m.TryLockWrite())
	m.UnlockWrite()
}

func TestRWMutex_UpgradeFastPath(t *testing.T) {
	m := NewRWMutex()
	m.LockRead(nil)
	require.True(t, m.TryUpgrade())
	require.False(t, m.TryLockRead())
	m.UnlockWrite()
	require.False(t, m.IsLocked())
}

func TestRWMutex_UpgradeUnderContention(t *testing.T) {
	m := NewRWMutex()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.LockRead(nil)
			time.Sleep(time.Millisecond)
			m.Upgrade(nil)
			m.UnlockWrite()
		}()
	}
	wg.Wait()
	require.False(t, m.IsLocked())
	require.Equal(t, 0, m.NumReaders())
	require.Equal(t, 0, m.NumPendingWriters())
}

func TestReverseGuard_UnlocksAndReacquires(t *testing.T) {
	m := NewMutex()
	m.Lock(1, nil)
	g := NewReverseGuard(m, 1, nil)
	require.False(t, m.IsLocked())

	require.True(t, m.TryLock(2))
	m.Unlock()

	g.Release()
	require.True(t, m.IsLocked())
	require.Equal(t, int64(1), m.Owner())
	m.Unlock()
}

func TestRWReverseGuard_UnlocksAndReacquires(t *testing.T) {
	m := NewRWMutex()
	m.LockWrite(nil)
	g := NewRWReverseGuard(m, nil)
	require.False(t, m.IsLocked())

	require.True(t, m.TryLockRead())
	m.UnlockRead()

	g.Release()
	require.True(t, m.IsLocked())
	m.UnlockWrite()
}
