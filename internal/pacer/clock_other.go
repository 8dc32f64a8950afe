//go:build !linux

package pacer

import "time"

var origin = time.Now()

type monotonicClock struct{}

// SystemClock reads the runtime's monotonic clock.
func SystemClock() Clock { return monotonicClock{} }

func (monotonicClock) Now() time.Duration    { return time.Since(origin) }
func (monotonicClock) Sleep(d time.Duration) { time.Sleep(d) }
