// Package pacer schedules fixed-cadence frame deadlines.
package pacer

import "time"

// Clock is a monotonic time source.
type Clock interface {
	// Now returns monotonic time since an arbitrary fixed origin.
	Now() time.Duration
	Sleep(d time.Duration)
}

// Pacer hands out deadlines spaced exactly one period apart. Deadlines are
// absolute, so a late tick does not shift the ones after it, and a missed
// deadline returns immediately rather than being skipped.
type Pacer struct {
	period   time.Duration
	clock    Clock
	next     time.Duration
	lateness time.Duration
}

// New returns a pacer whose first deadline is one period after now. A nil
// clock selects the system monotonic clock.
func New(period time.Duration, clock Clock) *Pacer {
	if clock == nil {
		clock = SystemClock()
	}
	return &Pacer{period: period, clock: clock, next: clock.Now()}
}

// Wait advances the deadline by one period and blocks until the clock
// reaches it. It returns the clock reading that satisfied the deadline.
func (p *Pacer) Wait() time.Duration {
	p.next += p.period
	for {
		now := p.clock.Now()
		delay := p.next - now
		if delay <= 0 {
			p.lateness = -delay
			return now
		}
		p.clock.Sleep(delay)
	}
}

// Lateness is how far past its deadline the last Wait returned.
func (p *Pacer) Lateness() time.Duration { return p.lateness }
