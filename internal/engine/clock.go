package engine

import "sync/atomic"

// Clock is the logical clock that orders outbox entries and cache writes.
//
// Every mutation and snapshot write is stamped with a strictly increasing
// seq from this clock. Wall time is never used for ordering, so replay order
// survives clock skew between devices.
//
// Safe for concurrent use.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start, typically the highest
// seq already present in the local cache.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
