package sequencer

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/stretchr/testify/require"
)

func TestRateLimitedExceptionCallback_SuppressesBurst(t *testing.T) {
	limiter := catrate.NewLimiter(map[time.Duration]int{time.Minute: 1})

	var calls atomic.Int32
	cb := RateLimitedExceptionCallback(
		limiter,
		func(err error, opaque any) any { return "category" },
		func(err error, opaque any) { calls.Add(1) },
	)

	boom := errors.New("boom")
	for i := 0; i < 5; i++ {
		cb(boom, nil)
	}

	require.EqualValues(t, 1, calls.Load(), "only the first call within the window should pass the limiter")
}

func TestRateLimitedExceptionCallback_SeparateCategoriesIndependent(t *testing.T) {
	limiter := catrate.NewLimiter(map[time.Duration]int{time.Minute: 1})

	var calls atomic.Int32
	cb := RateLimitedExceptionCallback(
		limiter,
		func(err error, opaque any) any { return opaque },
		func(err error, opaque any) { calls.Add(1) },
	)

	boom := errors.New("boom")
	cb(boom, "keyA")
	cb(boom, "keyB")
	cb(boom, "keyA")

	require.EqualValues(t, 2, calls.Load(), "distinct categories must not share the same rate budget")
}
