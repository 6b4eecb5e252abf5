package engine

import "sync/atomic"

// Clock is a monotonic logical clock numbering processed steps.
//
// Every event the Run loop takes off the queue gets the next sequence number,
// whether or not the transition accepts it, so step observers can order and
// correlate log lines without relying on wall time.
//
// Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock whose first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose first Next returns start+1.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out by Next.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
