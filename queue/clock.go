package queue

import "time"

// clockBase anchors NowNanos; time.Since reads Go's monotonic clock.
var clockBase = time.Now()

// NowNanos returns monotonic-clock nanoseconds elapsed since this package
// was initialized, the clock source shared by TaskQueue's sleeping-task
// check and dispatcher.Context.Sleep's deadline computation (spec §4.4's
// isSleeping() query).
func NowNanos() int64 { return int64(time.Since(clockBase)) }
