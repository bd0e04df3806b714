package engine

import "sync/atomic"

// Sequencer hands out journal sequence numbers.
type Sequencer interface {
	Next() int64
	Current() int64
}

// Clock is a monotonic logical clock. Every call is stamped with the next
// seq, so journal order is call-start order and never depends on wall time.
//
// Thread-safety: Clock is safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0. The first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock positioned at start, typically the last seq of
// an existing journal so new calls continue after it.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
