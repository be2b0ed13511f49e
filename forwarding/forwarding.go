// Package forwarding implements ARA's stochastic next-hop selection.
//
// For a destination with several next hops, a next hop is chosen with a
// probability proportional to its pheromone value (roulette-wheel selection).
// A destination with a single next hop always uses it and consumes no
// randomness.
package forwarding

import (
	"math/rand/v2"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ara/numeric"
	"github.com/opd-ai/ara/routing"
)

// Random yields uniformly distributed numbers in [0, 1).
type Random interface {
	Float64() float64
}

// StochasticForwarder selects next hops by roulette-wheel selection.
type StochasticForwarder struct {
	mu  sync.Mutex
	rng Random
}

// NewStochasticForwarder creates a forwarder whose generator is seeded once
// from clk. A nil clock uses the wall clock.
func NewStochasticForwarder(clk clock.Clock) *StochasticForwarder {
	if clk == nil {
		clk = clock.New()
	}
	seed := uint64(clk.Now().UnixNano())

	return &StochasticForwarder{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

// NewStochasticForwarderWithRandom creates a forwarder drawing from rng.
func NewStochasticForwarderWithRandom(rng Random) *StochasticForwarder {
	return &StochasticForwarder{rng: rng}
}

// Select picks the next hop for entry. It returns false when entry has no
// next hop or when all pheromone values are zero.
func (f *StochasticForwarder) Select(entry routing.Entry) (routing.NextHop, bool) {
	switch len(entry.NextHops) {
	case 0:
		return routing.NextHop{}, false
	case 1:
		return entry.NextHops[0], true
	}

	pheromones := make([]float64, len(entry.NextHops))
	var sum float64
	for i, hop := range entry.NextHops {
		pheromones[i] = hop.Pheromone
		sum += hop.Pheromone
	}

	if sum <= 0 {
		logrus.WithFields(logrus.Fields{
			"function":    "StochasticForwarder.Select",
			"destination": entry.Destination.String(),
			"next_hops":   len(entry.NextHops),
		}).Warn("All next hops have zero pheromone")
		return routing.NextHop{}, false
	}

	probabilities := make([]float64, len(pheromones))
	for i, phi := range pheromones {
		probabilities[i] = phi / sum
	}
	cumulative := numeric.CumSum(probabilities)

	r := f.draw()

	last := -1
	for i, c := range cumulative {
		// a hop without pheromone owns no slice of the wheel, even at r == 0
		if probabilities[i] == 0 {
			continue
		}
		if r <= c {
			return entry.NextHops[i], true
		}
		last = i
	}

	// rounding can leave the last cumulative value just below r
	return entry.NextHops[last], true
}

func (f *StochasticForwarder) draw() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.rng.Float64()
}
