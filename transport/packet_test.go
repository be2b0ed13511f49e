package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketTypeString(t *testing.T) {
	tests := []struct {
		packetType PacketType
		want       string
	}{
		{PacketData, "DATA"},
		{PacketFANT, "FANT"},
		{PacketBANT, "BANT"},
		{PacketRouteFailure, "ROUTE FAILURE"},
		{PacketType(200), "UNKNOWN"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.packetType.String())
	}
}

func TestPacketTypeClassification(t *testing.T) {
	assert.False(t, PacketData.IsAnt())
	assert.True(t, PacketFANT.IsAnt())
	assert.True(t, PacketBANT.IsAnt())
	assert.False(t, PacketRouteFailure.IsAnt())

	assert.False(t, PacketData.IsControl())
	assert.True(t, PacketRouteFailure.IsControl())

	assert.True(t, PacketRouteFailure.Valid())
	assert.False(t, PacketType(4).Valid())
}

func TestNewBANTReversesFANT(t *testing.T) {
	src := MustParseAddress("fe80::1")
	dst := MustParseAddress("fe80::2")

	fant := NewFANT(src, dst, 5, 16)
	bant := NewBANT(fant, 9, 16)

	assert.Equal(t, PacketBANT, bant.Type)
	assert.Equal(t, dst, bant.Source)
	assert.Equal(t, src, bant.Destination)
	assert.Equal(t, dst, bant.Sender)
	assert.Equal(t, uint8(9), bant.Seq)
}

func TestRouteFailureCarriesFailedDestination(t *testing.T) {
	failed := MustParseAddress("fe80::42")
	packet := NewRouteFailure(MustParseAddress("fe80::1"), MustParseAddress("fe80::2"), failed, 1, 8)

	got, ok := packet.FailedDestination()
	require.True(t, ok)
	assert.Equal(t, failed, got)

	_, ok = NewData(failed, failed, 1, nil).FailedDestination()
	assert.False(t, ok)
}

func TestPacketReleaseIsIdempotent(t *testing.T) {
	packet := NewData(MustParseAddress("fe80::1"), MustParseAddress("fe80::2"), 4, []byte("x"))

	calls := 0
	packet.SetReleaseHook(func(*Packet) { calls++ })

	assert.False(t, packet.Released())
	packet.Release()
	packet.Release()

	assert.True(t, packet.Released())
	assert.Equal(t, 1, calls)
}

func TestPacketClone(t *testing.T) {
	packet := NewData(MustParseAddress("fe80::1"), MustParseAddress("fe80::2"), 4, []byte("abc"))
	packet.Release()

	clone := packet.Clone()
	clone.Payload[0] = 'z'

	assert.False(t, clone.Released())
	assert.Equal(t, []byte("abc"), packet.Payload)
	assert.Equal(t, packet.Destination, clone.Destination)
}
