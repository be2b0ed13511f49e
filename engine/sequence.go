package engine

import "sync/atomic"

// SequenceCounter numbers originated control packets. It wraps after 255.
type SequenceCounter struct {
	value atomic.Uint32
}

// Next increments the counter and returns the new value.
func (c *SequenceCounter) Next() uint8 {
	return uint8(c.value.Add(1))
}

// Current returns the last value handed out.
func (c *SequenceCounter) Current() uint8 {
	return uint8(c.value.Load())
}
