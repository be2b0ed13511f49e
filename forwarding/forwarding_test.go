package forwarding

import (
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/ara/routing"
	"github.com/opd-ai/ara/transport"
)

// sequenceRandom returns the given values in order and counts the draws.
type sequenceRandom struct {
	values []float64
	draws  int
}

func (s *sequenceRandom) Float64() float64 {
	v := s.values[s.draws%len(s.values)]
	s.draws++
	return v
}

var (
	destination = transport.MustParseAddress("fe80::100")
	hopA        = transport.MustParseAddress("fe80::a")
	hopB        = transport.MustParseAddress("fe80::b")
	hopC        = transport.MustParseAddress("fe80::c")
)

func entryWith(hops ...routing.NextHop) routing.Entry {
	return routing.Entry{Destination: destination, NextHops: hops}
}

func TestSelectWithoutNextHops(t *testing.T) {
	rng := &sequenceRandom{values: []float64{0.5}}
	f := NewStochasticForwarderWithRandom(rng)

	_, ok := f.Select(entryWith())
	assert.False(t, ok)
	assert.Equal(t, 0, rng.draws)
}

func TestSelectSingleNextHopIsDeterministic(t *testing.T) {
	rng := &sequenceRandom{values: []float64{0.99}}
	f := NewStochasticForwarderWithRandom(rng)

	for i := 0; i < 100; i++ {
		hop, ok := f.Select(entryWith(routing.NextHop{Address: hopA, Pheromone: 0.1}))
		require.True(t, ok)
		assert.Equal(t, hopA, hop.Address)
	}
	assert.Equal(t, 0, rng.draws, "a single next hop must not consume randomness")
}

func TestSelectRouletteWheel(t *testing.T) {
	entry := entryWith(
		routing.NextHop{Address: hopA, Pheromone: 1},
		routing.NextHop{Address: hopB, Pheromone: 1},
		routing.NextHop{Address: hopC, Pheromone: 2},
	)
	// cumulative probabilities: 0.25, 0.5, 1.0

	tests := []struct {
		r    float64
		want transport.Address
	}{
		{0.0, hopA},
		{0.1, hopA},
		{0.25, hopA}, // boundary belongs to the first index satisfying r <= c
		{0.26, hopB},
		{0.5, hopB},
		{0.51, hopC},
		{0.999999, hopC},
	}

	for _, tt := range tests {
		f := NewStochasticForwarderWithRandom(&sequenceRandom{values: []float64{tt.r}})
		hop, ok := f.Select(entry)
		require.True(t, ok)
		assert.Equal(t, tt.want, hop.Address, "r=%v", tt.r)
	}
}

func TestSelectAllZeroPheromone(t *testing.T) {
	f := NewStochasticForwarderWithRandom(&sequenceRandom{values: []float64{0.5}})

	_, ok := f.Select(entryWith(
		routing.NextHop{Address: hopA},
		routing.NextHop{Address: hopB},
	))
	assert.False(t, ok)
}

func TestSelectZeroPheromoneHopIsNeverChosen(t *testing.T) {
	entry := entryWith(
		routing.NextHop{Address: hopA, Pheromone: 0},
		routing.NextHop{Address: hopB, Pheromone: 5},
	)

	f := NewStochasticForwarderWithRandom(&sequenceRandom{values: []float64{0.0, 0.0001, 0.5, 0.9999, 1.0}})
	for i := 0; i < 5; i++ {
		hop, ok := f.Select(entry)
		require.True(t, ok)
		assert.Equal(t, hopB, hop.Address)
	}
}

func TestSelectionFrequencyConvergesToPheromoneShare(t *testing.T) {
	mock := clock.NewMock()
	f := NewStochasticForwarder(mock)

	entry := entryWith(
		routing.NextHop{Address: hopA, Pheromone: 1},
		routing.NextHop{Address: hopB, Pheromone: 3},
	)

	const trials = 10000
	first := 0
	for i := 0; i < trials; i++ {
		hop, ok := f.Select(entry)
		require.True(t, ok)
		if hop.Address == hopA {
			first++
		}
	}

	frequency := float64(first) / trials
	assert.InDelta(t, 0.25, frequency, 0.02)
}

func TestSelectSkipsTrailingZeroPheromoneHop(t *testing.T) {
	entry := entryWith(
		routing.NextHop{Address: hopA, Pheromone: 2},
		routing.NextHop{Address: hopB, Pheromone: 0},
	)

	f := NewStochasticForwarderWithRandom(&sequenceRandom{values: []float64{0.0, 1.0}})
	for i := 0; i < 2; i++ {
		hop, ok := f.Select(entry)
		require.True(t, ok)
		assert.Equal(t, hopA, hop.Address)
	}
}

func TestNewStochasticForwarderWithNilClock(t *testing.T) {
	f := NewStochasticForwarder(nil)
	hop, ok := f.Select(entryWith(
		routing.NextHop{Address: hopA, Pheromone: 1},
		routing.NextHop{Address: hopB, Pheromone: 1},
	))
	require.True(t, ok)
	assert.Contains(t, []transport.Address{hopA, hopB}, hop.Address)
}
