//go:build linux

package pacer

import (
	"time"

	"golang.org/x/sys/unix"
)

var clockGettime = unix.ClockGettime

type monotonicClock struct {
	// base and origin are read together; when CLOCK_MONOTONIC cannot be
	// read, Now continues from base on the runtime's monotonic clock.
	base   time.Duration
	origin time.Time
}

// SystemClock reads CLOCK_MONOTONIC.
func SystemClock() Clock {
	c := &monotonicClock{origin: time.Now()}
	c.base, _ = readMonotonic()
	return c
}

func readMonotonic() (time.Duration, bool) {
	var ts unix.Timespec
	if err := clockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return 0, false
	}
	return time.Duration(ts.Nano()), true
}

func (c *monotonicClock) Now() time.Duration {
	if now, ok := readMonotonic(); ok {
		return now
	}
	return c.base + time.Since(c.origin)
}

func (*monotonicClock) Sleep(d time.Duration) { time.Sleep(d) }
