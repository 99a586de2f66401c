package engine

import "sync/atomic"

// Clock is the logical clock of the dispatch loop. Every processed message
// is stamped with the next value, so logs and traces order steps without
// consulting wall-clock time.
//
// Thread-safety: atomic; only the Run loop calls Next, anyone may read
// Current.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock at 0. The first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
