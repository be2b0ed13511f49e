package engine

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/ara/evaporation"
	"github.com/opd-ai/ara/metrics"
	"github.com/opd-ai/ara/routing"
	"github.com/opd-ai/ara/simnet"
	"github.com/opd-ai/ara/transport"
)

var (
	addrA = transport.MustParseAddress("fe80::a")
	addrB = transport.MustParseAddress("fe80::b")
	addrC = transport.MustParseAddress("fe80::c")
	addrD = transport.MustParseAddress("fe80::d")
)

type testNode struct {
	engine   *Engine
	endpoint *simnet.Endpoint
	metrics  *metrics.Metrics

	received []*transport.Packet
	failures []transport.Address
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Discovery.Timeout = time.Second
	cfg.Discovery.Retries = 1
	cfg.Discovery.DuplicateTTL = time.Second
	return cfg
}

func newTestNode(t *testing.T, network *simnet.Network, addr transport.Address, clk clock.Clock, selector Selector) *testNode {
	t.Helper()

	routingCfg := routing.DefaultConfig()
	routingCfg.Evaporation = evaporation.Config{
		Kind:      evaporation.KindLinear,
		Factor:    0.25,
		Threshold: 0.75,
		Interval:  2 * time.Second,
	}
	table, err := routing.NewTable(routingCfg, clk)
	require.NoError(t, err)

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	endpoint := network.Join(addr)
	engine, err := New(Options{
		Config:    testConfig(),
		Table:     table,
		Transport: endpoint,
		Selector:  selector,
		Clock:     clk,
		Metrics:   m,
	})
	require.NoError(t, err)

	node := &testNode{engine: engine, endpoint: endpoint, metrics: m}
	engine.OnReceive(func(p *transport.Packet) { node.received = append(node.received, p) })
	engine.OnRouteFailure(func(dest transport.Address) { node.failures = append(node.failures, dest) })

	for _, kind := range []transport.PacketType{
		transport.PacketData, transport.PacketFANT, transport.PacketBANT, transport.PacketRouteFailure,
	} {
		endpoint.RegisterHandler(kind, engine.HandlePacket)
	}

	return node
}

// firstHop always picks the first next hop.
type firstHop struct{}

func (firstHop) Select(entry routing.Entry) (routing.NextHop, bool) {
	if len(entry.NextHops) == 0 {
		return routing.NextHop{}, false
	}
	return entry.NextHops[0], true
}

// noHop never finds a next hop.
type noHop struct{}

func (noHop) Select(routing.Entry) (routing.NextHop, bool) {
	return routing.NextHop{}, false
}

func pendingOfType(network *simnet.Network, kind transport.PacketType) []simnet.Transmission {
	var result []simnet.Transmission
	for _, tx := range network.Pending() {
		if tx.Packet.Type == kind {
			result = append(result, tx)
		}
	}
	return result
}

func TestSendPacketDropsExhaustedHopLimit(t *testing.T) {
	network := simnet.NewNetwork(nil)
	node := newTestNode(t, network, addrA, clock.NewMock(), nil)

	packet := transport.NewData(addrA, addrC, 0, []byte("x"))
	assert.Equal(t, OutcomeDropped, node.engine.SendPacket(packet))
	assert.True(t, packet.Released())
	assert.Empty(t, network.Pending())
	assert.Equal(t, 1.0, testutil.ToFloat64(node.metrics.Packets.WithLabelValues("dropped")))
}

func TestSendPacketForwardsAndReinforces(t *testing.T) {
	network := simnet.NewNetwork(nil)
	node := newTestNode(t, network, addrA, clock.NewMock(), nil)
	network.Join(addrB)
	network.Link(addrA, addrB)

	require.NoError(t, node.engine.Table().Update(addrC, addrB, 1.0))

	packet := transport.NewData(addrA, addrC, 64, []byte("payload"))
	assert.Equal(t, OutcomeForwarded, node.engine.SendPacket(packet))

	pending := network.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, addrB, pending[0].To)
	assert.Equal(t, addrA, pending[0].Packet.Sender)
	assert.Equal(t, []byte("payload"), pending[0].Packet.Payload)

	assert.Equal(t, 2.0, node.engine.Table().PheromoneValue(addrC, addrB))
	assert.False(t, packet.Released())
}

func TestSendPacketStartsDiscovery(t *testing.T) {
	network := simnet.NewNetwork(nil)
	node := newTestNode(t, network, addrA, clock.NewMock(), nil)
	network.Join(addrB)
	network.Join(addrC)
	network.Link(addrA, addrB)
	network.Link(addrA, addrC)

	first := transport.NewData(addrA, addrD, 64, []byte("1"))
	assert.Equal(t, OutcomeDiscoveryStarted, node.engine.SendPacket(first))
	assert.True(t, node.engine.DiscoveryInProgress(addrD))
	assert.Equal(t, 1, node.engine.Trapped(addrD))

	fants := pendingOfType(network, transport.PacketFANT)
	require.Len(t, fants, 2, "one FANT per neighbor")
	for _, tx := range fants {
		assert.True(t, tx.Broadcast)
		assert.Equal(t, addrA, tx.Packet.Source)
		assert.Equal(t, addrD, tx.Packet.Destination)
		assert.Equal(t, uint8(1), tx.Packet.Seq)
	}

	second := transport.NewData(addrA, addrD, 64, []byte("2"))
	assert.Equal(t, OutcomeTrapped, node.engine.SendPacket(second))
	assert.Equal(t, 2, node.engine.Trapped(addrD))
	assert.Len(t, pendingOfType(network, transport.PacketFANT), 2, "no second flood")
	assert.False(t, first.Released())
	assert.False(t, second.Released())

	assert.Equal(t, 1.0, testutil.ToFloat64(node.metrics.Discoveries.WithLabelValues("started")))
	assert.Equal(t, 2.0, testutil.ToFloat64(node.metrics.TrappedPackets))
}

func TestSendPacketWithoutRouteForOtherSourceReportsRouteFailure(t *testing.T) {
	network := simnet.NewNetwork(nil)
	node := newTestNode(t, network, addrB, clock.NewMock(), nil)
	network.Join(addrA)
	network.Link(addrB, addrA)

	packet := transport.NewData(addrA, addrD, 63, []byte("x"))
	assert.Equal(t, OutcomeRouteFailureBroadcast, node.engine.SendPacket(packet))
	assert.True(t, packet.Released())
	assert.False(t, node.engine.DiscoveryInProgress(addrD))

	pending := network.Pending()
	require.Len(t, pending, 1)
	failure := pending[0].Packet
	assert.Equal(t, transport.PacketRouteFailure, failure.Type)
	assert.Equal(t, addrB, failure.Source)
	assert.Equal(t, addrA, failure.Destination)

	failed, ok := failure.FailedDestination()
	require.True(t, ok)
	assert.Equal(t, addrD, failed)
}

func TestSendPacketFallsBackWhenNoHopSelected(t *testing.T) {
	network := simnet.NewNetwork(nil)
	node := newTestNode(t, network, addrA, clock.NewMock(), noHop{})
	network.Join(addrB)
	network.Link(addrA, addrB)

	require.NoError(t, node.engine.Table().Update(addrC, addrB, 1.0))

	outcome := node.engine.SendPacket(transport.NewData(addrA, addrC, 64, []byte("x")))
	assert.Equal(t, OutcomeDiscoveryStarted, outcome)
}

func TestSendPacketReleasesOnSendFailure(t *testing.T) {
	network := simnet.NewNetwork(nil)
	node := newTestNode(t, network, addrA, clock.NewMock(), nil)

	// addrB is in the routing table but not a neighbor
	require.NoError(t, node.engine.Table().Update(addrC, addrB, 1.0))

	packet := transport.NewData(addrA, addrC, 64, []byte("x"))
	assert.Equal(t, OutcomeSendFailed, node.engine.SendPacket(packet))
	assert.True(t, packet.Released())
	assert.Equal(t, 1.0, testutil.ToFloat64(node.metrics.Packets.WithLabelValues("send_failed")))
}

func TestSendPacketTriggersEvaporation(t *testing.T) {
	mock := clock.NewMock()
	network := simnet.NewNetwork(nil)
	node := newTestNode(t, network, addrA, mock, firstHop{})
	network.Join(addrB)
	network.Link(addrA, addrB)

	table := node.engine.Table()
	require.NoError(t, table.Update(addrC, addrB, 0.9))
	require.NoError(t, table.Update(addrD, addrB, 3.0))

	node.engine.SendPacket(transport.NewData(addrA, addrD, 64, []byte("x")))
	assert.Equal(t, 0.0, testutil.ToFloat64(node.metrics.Evaporations))
	assert.Equal(t, 4.0, table.PheromoneValue(addrD, addrB))

	mock.Add(2 * time.Second)
	node.engine.SendPacket(transport.NewData(addrA, addrD, 64, []byte("y")))

	assert.Equal(t, 1.0, testutil.ToFloat64(node.metrics.Evaporations))
	assert.False(t, table.EntryExists(addrC), "0.9 decays below the threshold")
	assert.Equal(t, 4.75, table.PheromoneValue(addrD, addrB))
}

func TestNewDataPacket(t *testing.T) {
	network := simnet.NewNetwork(nil)
	node := newTestNode(t, network, addrA, clock.NewMock(), nil)

	packet, err := node.engine.NewDataPacket(addrC, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, addrA, packet.Source)
	assert.Equal(t, testConfig().HopLimit, packet.HopLimit)

	_, err = node.engine.NewDataPacket(addrC, nil)
	assert.Error(t, err)
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Config: testConfig()})
	assert.ErrorIs(t, err, ErrMissingTransport)

	network := simnet.NewNetwork(nil)
	_, err = New(Options{Config: testConfig(), Transport: network.Join(addrA)})
	assert.Error(t, err)

	table, err := routing.NewTable(routing.DefaultConfig(), nil)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.InitialPheromone = 0
	_, err = New(Options{Config: cfg, Table: table, Transport: network.Join(addrA)})
	assert.Error(t, err)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "dropped", OutcomeDropped.String())
	assert.Equal(t, "trapped", OutcomeTrapped.String())
	assert.Equal(t, "forwarded", OutcomeForwarded.String())
	assert.Equal(t, "discovery_started", OutcomeDiscoveryStarted.String())
	assert.Equal(t, "route_failure", OutcomeRouteFailureBroadcast.String())
	assert.Equal(t, "send_failed", OutcomeSendFailed.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}

func TestSequenceCounterWraps(t *testing.T) {
	var seq SequenceCounter
	assert.Equal(t, uint8(0), seq.Current())
	assert.Equal(t, uint8(1), seq.Next())

	for i := 0; i < 254; i++ {
		seq.Next()
	}
	assert.Equal(t, uint8(255), seq.Current())
	assert.Equal(t, uint8(0), seq.Next())
	assert.Equal(t, uint8(1), seq.Next())
}

func TestCloseReleasesTrappedPackets(t *testing.T) {
	network := simnet.NewNetwork(nil)
	node := newTestNode(t, network, addrA, clock.NewMock(), nil)
	network.Join(addrB)
	network.Link(addrA, addrB)

	packet := transport.NewData(addrA, addrD, 64, []byte("x"))
	node.engine.SendPacket(packet)

	node.engine.Close()
	assert.True(t, packet.Released())
	assert.False(t, node.engine.DiscoveryInProgress(addrD))
	assert.Equal(t, 0, node.engine.Trapped(addrD))
}
