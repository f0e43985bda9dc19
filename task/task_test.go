package task

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTask_StateTransitions(t *testing.T) {
	ts := New(-1, Standalone, func(any) error { return nil })
	require.Equal(t, Suspended, ts.State())

	require.True(t, ts.TryRun())
	require.Equal(t, Running, ts.State())
	require.False(t, ts.TryRun())

	require.True(t, ts.Suspend())
	require.Equal(t, Suspended, ts.State())

	require.True(t, ts.TryRun())
	require.True(t, ts.Terminate())
	require.True(t, ts.IsTerminated())
	require.False(t, ts.Terminate())
}

func TestTask_CLS(t *testing.T) {
	ts := New(-1, Standalone, nil)
	_, ok := ts.GetCLS("k")
	require.False(t, ok)

	ts.SetCLS("k", 42)
	v, ok := ts.GetCLS("k")
	require.True(t, ok)
	require.Equal(t, 42, v)

	ts.DeleteCLS("k")
	_, ok = ts.GetCLS("k")
	require.False(t, ok)

	ts.SetCLS("a", 1)
	ts.ClearCLS()
	_, ok = ts.GetCLS("a")
	require.False(t, ok)
}

func TestIoTask_Basics(t *testing.T) {
	called := false
	io := NewIoTask(-5, func() error { called = true; return nil })
	require.Equal(t, int64(-5), io.ID)
	require.Equal(t, AnyQueue, io.QueueID)
	require.NoError(t, io.Fn())
	require.True(t, called)
}
