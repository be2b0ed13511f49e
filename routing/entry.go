package routing

import (
	"time"

	"github.com/opd-ai/ara/transport"
)

// NextHop is a neighbor through which a destination can be reached.
type NextHop struct {
	Address   transport.Address
	Pheromone float64
	// Credit and TTL are carried for inspection; no routing decision reads them.
	Credit float64
	TTL    uint8
}

// Entry holds every known next hop towards one destination. The order of
// NextHops is the insertion order and is what the stochastic forwarder
// iterates over.
type Entry struct {
	Destination    transport.Address
	LastAccessTime time.Time
	NextHops       []NextHop
}

// NextHop returns the next hop with the given address.
func (e Entry) NextHop(addr transport.Address) (NextHop, bool) {
	if i := e.indexOf(addr); i >= 0 {
		return e.NextHops[i], true
	}
	return NextHop{}, false
}

// PheromoneSum returns the sum of all next hop pheromone values.
func (e Entry) PheromoneSum() float64 {
	var sum float64
	for _, hop := range e.NextHops {
		sum += hop.Pheromone
	}
	return sum
}

func (e *Entry) indexOf(addr transport.Address) int {
	for i := range e.NextHops {
		if e.NextHops[i].Address == addr {
			return i
		}
	}
	return -1
}

func (e *Entry) clone() Entry {
	c := Entry{
		Destination:    e.Destination,
		LastAccessTime: e.LastAccessTime,
	}
	if len(e.NextHops) > 0 {
		c.NextHops = append([]NextHop(nil), e.NextHops...)
	}
	return c
}
