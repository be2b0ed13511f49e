package packettrap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/ara/transport"
)

var (
	self  = transport.MustParseAddress("fe80::1")
	destA = transport.MustParseAddress("fe80::a")
	destB = transport.MustParseAddress("fe80::b")
)

func dataPacket(dst transport.Address, payload string) *transport.Packet {
	return transport.NewData(self, dst, 64, []byte(payload))
}

func TestTrapAndFlushPreservesOrder(t *testing.T) {
	trap := New(0)

	first := dataPacket(destA, "one")
	second := dataPacket(destA, "two")
	third := dataPacket(destA, "three")

	require.NoError(t, trap.Trap(destA, first))
	require.NoError(t, trap.Trap(destA, second))
	require.NoError(t, trap.Trap(destA, third))

	assert.Equal(t, 3, trap.Count(destA))
	assert.True(t, trap.Contains(destA))

	flushed := trap.Flush(destA)
	require.Len(t, flushed, 3)
	assert.Same(t, first, flushed[0])
	assert.Same(t, second, flushed[1])
	assert.Same(t, third, flushed[2])

	assert.Equal(t, 0, trap.Count(destA))
	assert.False(t, trap.Contains(destA))
	assert.Empty(t, trap.Flush(destA))
}

func TestTrapKeepsDestinationsSeparate(t *testing.T) {
	trap := New(0)

	require.NoError(t, trap.Trap(destA, dataPacket(destA, "a")))
	require.NoError(t, trap.Trap(destB, dataPacket(destB, "b1")))
	require.NoError(t, trap.Trap(destB, dataPacket(destB, "b2")))

	assert.Equal(t, 1, trap.Count(destA))
	assert.Equal(t, 2, trap.Count(destB))
	assert.Equal(t, 3, trap.Len())
	assert.Equal(t, []transport.Address{destA, destB}, trap.Destinations())

	failed := trap.Fail(destB)
	require.Len(t, failed, 2)
	assert.Equal(t, []byte("b1"), failed[0].Payload)
	assert.Equal(t, []byte("b2"), failed[1].Payload)

	assert.Equal(t, 1, trap.Len())
	assert.Equal(t, []transport.Address{destA}, trap.Destinations())
}

func TestTrapCapacity(t *testing.T) {
	trap := New(2)

	require.NoError(t, trap.Trap(destA, dataPacket(destA, "1")))
	require.NoError(t, trap.Trap(destA, dataPacket(destA, "2")))

	err := trap.Trap(destA, dataPacket(destA, "3"))
	assert.ErrorIs(t, err, ErrTrapFull)
	assert.Equal(t, 2, trap.Count(destA))

	// other destinations are unaffected
	assert.NoError(t, trap.Trap(destB, dataPacket(destB, "x")))
}

func TestCountUnknownDestination(t *testing.T) {
	trap := New(0)
	assert.Equal(t, 0, trap.Count(destA))
	assert.Nil(t, trap.Fail(destA))
}

func TestClearReleasesPackets(t *testing.T) {
	trap := New(0)

	packets := []*transport.Packet{
		dataPacket(destA, "1"),
		dataPacket(destB, "2"),
	}
	require.NoError(t, trap.Trap(destA, packets[0]))
	require.NoError(t, trap.Trap(destB, packets[1]))

	trap.Clear()

	assert.Equal(t, 0, trap.Len())
	for _, p := range packets {
		assert.True(t, p.Released())
	}
}
