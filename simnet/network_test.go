package simnet_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/ara/simnet"
	"github.com/opd-ai/ara/transport"
	"github.com/opd-ai/ara/wire"
)

var (
	addrA = transport.MustParseAddress("fe80::a")
	addrB = transport.MustParseAddress("fe80::b")
	addrC = transport.MustParseAddress("fe80::c")
)

type recorder struct {
	mu      sync.Mutex
	packets []*transport.Packet
}

func (r *recorder) handle(p *transport.Packet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.packets = append(r.packets, p)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.packets)
}

func TestSendAndFlush(t *testing.T) {
	network := simnet.NewNetwork(wire.Codec{})
	a := network.Join(addrA)
	b := network.Join(addrB)
	network.Link(addrA, addrB)

	rec := &recorder{}
	b.RegisterHandler(transport.PacketData, rec.handle)

	packet := transport.NewData(addrA, addrB, 64, []byte("hello"))
	require.NoError(t, a.Send(packet, addrB))

	pending := network.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, addrA, pending[0].From)
	assert.Equal(t, addrB, pending[0].To)
	assert.False(t, pending[0].Broadcast)

	assert.Equal(t, 1, network.Flush())
	require.Equal(t, 1, rec.count())
	assert.Equal(t, []byte("hello"), rec.packets[0].Payload)
	assert.NotSame(t, packet, rec.packets[0])

	log := network.DeliveryLog()
	require.Len(t, log, 1)
	assert.True(t, log[0].Success)
	assert.Equal(t, transport.PacketData, log[0].Type)
}

func TestSendRequiresLink(t *testing.T) {
	network := simnet.NewNetwork(nil)
	a := network.Join(addrA)
	network.Join(addrB)

	err := a.Send(transport.NewData(addrA, addrB, 64, []byte("x")), addrB)
	assert.ErrorIs(t, err, transport.ErrUnknownNeighbor)

	network.Link(addrA, addrB)
	assert.True(t, network.Linked(addrB, addrA))
	network.Unlink(addrA, addrB)
	assert.False(t, network.Linked(addrA, addrB))
}

func TestBroadcastReachesNeighborsOnly(t *testing.T) {
	network := simnet.NewNetwork(wire.Codec{})
	a := network.Join(addrA)
	b := network.Join(addrB)
	c := network.Join(addrC)
	network.Link(addrA, addrB)

	recB, recC := &recorder{}, &recorder{}
	b.RegisterHandler(transport.PacketFANT, recB.handle)
	c.RegisterHandler(transport.PacketFANT, recC.handle)

	require.NoError(t, a.Broadcast(transport.NewFANT(addrA, addrC, 1, 64)))
	network.Flush()

	assert.Equal(t, 1, recB.count())
	assert.Equal(t, 0, recC.count())
	assert.Equal(t, []transport.Address{addrB}, network.Neighbors(addrA))
}

func TestBroadcastWithoutNeighbors(t *testing.T) {
	network := simnet.NewNetwork(nil)
	a := network.Join(addrA)

	assert.ErrorIs(t, a.Broadcast(transport.NewFANT(addrA, addrB, 1, 64)), transport.ErrNoNeighbors)
}

func TestDeliveryFailuresAreLogged(t *testing.T) {
	network := simnet.NewNetwork(nil)
	a := network.Join(addrA)
	b := network.Join(addrB)
	network.Link(addrA, addrB)

	// no handler registered
	require.NoError(t, a.Send(transport.NewData(addrA, addrB, 64, []byte("x")), addrB))
	network.Flush()

	// receiver closed
	require.NoError(t, b.Close())
	require.NoError(t, a.Send(transport.NewData(addrA, addrB, 64, []byte("y")), addrB))
	network.Flush()

	log := network.DeliveryLog()
	require.Len(t, log, 2)
	assert.ErrorIs(t, log[0].Error, simnet.ErrNoHandler)
	assert.ErrorIs(t, log[1].Error, transport.ErrUnknownNeighbor)

	stats := network.Stats()
	assert.Equal(t, 2, stats.Nodes)
	assert.Equal(t, 1, stats.Links)
	assert.Equal(t, 2, stats.Deliveries)
	assert.Equal(t, 2, stats.Failed)

	network.ClearDeliveryLog()
	assert.Empty(t, network.DeliveryLog())
}

func TestClosedEndpointCannotSend(t *testing.T) {
	network := simnet.NewNetwork(nil)
	a := network.Join(addrA)
	network.Join(addrB)
	network.Link(addrA, addrB)

	require.NoError(t, a.Close())
	assert.ErrorIs(t, a.Send(transport.NewData(addrA, addrB, 64, []byte("x")), addrB), transport.ErrTransportClosed)
	assert.ErrorIs(t, a.Broadcast(transport.NewFANT(addrA, addrB, 1, 64)), transport.ErrTransportClosed)
}

func TestDrop(t *testing.T) {
	network := simnet.NewNetwork(nil)
	a := network.Join(addrA)
	network.Join(addrB)
	network.Link(addrA, addrB)

	require.NoError(t, a.Send(transport.NewData(addrA, addrB, 64, []byte("x")), addrB))
	assert.Equal(t, 1, network.Drop())
	assert.Equal(t, 0, network.Flush())
}

func TestStartDeliversInBackground(t *testing.T) {
	network := simnet.NewNetwork(wire.Codec{})
	a := network.Join(addrA)
	b := network.Join(addrB)
	network.Link(addrA, addrB)

	rec := &recorder{}
	b.RegisterHandler(transport.PacketData, rec.handle)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	network.Start(ctx)

	require.NoError(t, a.Send(transport.NewData(addrA, addrB, 64, []byte("x")), addrB))

	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
}
