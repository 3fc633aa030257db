package pipeline

import "sync/atomic"

// Clock is a monotonic logical clock that stamps jobs with their seq.
//
// Job order in the store comes from these numbers, never from wall-clock
// time, so a replayed batch lists its jobs in the same order.
//
// Clock is safe for concurrent use. Submit may be called from any
// goroutine, and each call takes its own seq.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that continues after start.
// Used to resume numbering from store.GetLastSeq.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
