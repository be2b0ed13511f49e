// Package packettrap holds packets waiting for a route discovery to finish.
package packettrap

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ara/transport"
)

// DefaultMaxPerDestination bounds the queue of a single destination.
const DefaultMaxPerDestination = 64

// ErrTrapFull is returned when a destination's queue is at capacity.
var ErrTrapFull = errors.New("packet trap full")

// Trap is a set of per-destination FIFO queues.
//
// Trap is not safe for concurrent use; it is owned by the node's event loop.
type Trap struct {
	queues map[transport.Address][]*transport.Packet
	max    int
}

// New creates a trap holding at most maxPerDestination packets per
// destination. Non-positive values select DefaultMaxPerDestination.
func New(maxPerDestination int) *Trap {
	if maxPerDestination <= 0 {
		maxPerDestination = DefaultMaxPerDestination
	}

	return &Trap{
		queues: make(map[transport.Address][]*transport.Packet),
		max:    maxPerDestination,
	}
}

// Trap appends packet to the queue for dest, creating the queue if needed.
func (t *Trap) Trap(dest transport.Address, packet *transport.Packet) error {
	queue := t.queues[dest]
	if len(queue) >= t.max {
		logrus.WithFields(logrus.Fields{
			"function":    "Trap.Trap",
			"destination": dest.String(),
			"queued":      len(queue),
		}).Warn("Packet trap full")
		return fmt.Errorf("%w: %s holds %d packets", ErrTrapFull, dest, len(queue))
	}

	t.queues[dest] = append(queue, packet)

	logrus.WithFields(logrus.Fields{
		"function":    "Trap.Trap",
		"destination": dest.String(),
		"queued":      len(queue) + 1,
	}).Debug("Packet trapped")

	return nil
}

// Count returns the number of packets queued for dest.
func (t *Trap) Count(dest transport.Address) int {
	return len(t.queues[dest])
}

// Contains reports whether any packet is queued for dest.
func (t *Trap) Contains(dest transport.Address) bool {
	return len(t.queues[dest]) > 0
}

// Flush removes and returns the packets queued for dest in arrival order.
// It is used once the destination has become deliverable.
func (t *Trap) Flush(dest transport.Address) []*transport.Packet {
	return t.drain(dest, "Trap.Flush")
}

// Fail removes and returns the packets queued for dest in arrival order.
// It is used when discovery for dest has timed out; the caller reports one
// route failure per returned packet.
func (t *Trap) Fail(dest transport.Address) []*transport.Packet {
	return t.drain(dest, "Trap.Fail")
}

func (t *Trap) drain(dest transport.Address, function string) []*transport.Packet {
	queue, ok := t.queues[dest]
	if !ok {
		return nil
	}
	delete(t.queues, dest)

	logrus.WithFields(logrus.Fields{
		"function":    function,
		"destination": dest.String(),
		"packets":     len(queue),
	}).Debug("Drained packet trap")

	return queue
}

// Len returns the total number of trapped packets.
func (t *Trap) Len() int {
	total := 0
	for _, queue := range t.queues {
		total += len(queue)
	}
	return total
}

// Destinations returns the destinations with queued packets, ordered by
// address.
func (t *Trap) Destinations() []transport.Address {
	dests := make([]transport.Address, 0, len(t.queues))
	for dest := range t.queues {
		dests = append(dests, dest)
	}
	sort.Slice(dests, func(i, j int) bool {
		return bytes.Compare(dests[i][:], dests[j][:]) < 0
	})
	return dests
}

// Clear releases every trapped packet and empties the trap.
func (t *Trap) Clear() {
	for dest, queue := range t.queues {
		for _, packet := range queue {
			packet.Release()
		}
		delete(t.queues, dest)
	}
}
