package engine

import (
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ara/discovery"
	"github.com/opd-ai/ara/forwarding"
	"github.com/opd-ai/ara/limits"
	"github.com/opd-ai/ara/metrics"
	"github.com/opd-ai/ara/packettrap"
	"github.com/opd-ai/ara/reinforcement"
	"github.com/opd-ai/ara/routing"
	"github.com/opd-ai/ara/transport"
)

var (
	// ErrMalformedControl indicates a received packet that cannot be processed
	ErrMalformedControl = errors.New("malformed control packet")

	// ErrMissingTransport indicates an engine built without a transport
	ErrMissingTransport = errors.New("engine requires a transport")
)

// Selector chooses a next hop for a routing entry.
type Selector interface {
	Select(entry routing.Entry) (routing.NextHop, bool)
}

// Config holds the engine parameters.
type Config struct {
	// InitialPheromone is deposited on paths discovered by ants.
	InitialPheromone float64 `yaml:"initial_pheromone"`
	// HopLimit is given to packets this node originates.
	HopLimit uint8 `yaml:"hop_limit"`
	// MaxTrapped bounds the packets trapped per destination.
	MaxTrapped int `yaml:"max_trapped"`

	Discovery discovery.Config `yaml:"discovery"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		InitialPheromone: 1.0,
		HopLimit:         limits.DefaultHopLimit,
		MaxTrapped:       packettrap.DefaultMaxPerDestination,
		Discovery:        discovery.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.InitialPheromone <= 0 {
		return fmt.Errorf("initial pheromone must be positive, got %v", c.InitialPheromone)
	}
	if c.HopLimit == 0 {
		return errors.New("hop limit must be positive")
	}
	if c.MaxTrapped <= 0 {
		return fmt.Errorf("max trapped packets must be positive, got %d", c.MaxTrapped)
	}
	return c.Discovery.Validate()
}

// Options are the collaborators of an Engine. Table, Transport are required;
// the remaining fields have defaults.
type Options struct {
	Config        Config
	Table         *routing.Table
	Transport     transport.Transport
	Selector      Selector
	Reinforcement reinforcement.Policy
	Clock         clock.Clock
	Metrics       *metrics.Metrics
}

// ReceiveHandler is called for data packets addressed to this node.
type ReceiveHandler func(packet *transport.Packet)

// RouteFailureHandler is called when destination could not be reached.
type RouteFailureHandler func(destination transport.Address)

// Engine runs the forwarding decision pipeline of one node.
type Engine struct {
	local         transport.Address
	cfg           Config
	table         *routing.Table
	transport     transport.Transport
	selector      Selector
	reinforcement reinforcement.Policy
	trap          *packettrap.Trap
	tracker       *discovery.Tracker
	duplicates    *discovery.DuplicateFilter
	seq           SequenceCounter
	metrics       *metrics.Metrics

	onReceive      ReceiveHandler
	onRouteFailure RouteFailureHandler
}

// New creates an engine for the node owning opts.Transport.
func New(opts Options) (*Engine, error) {
	if opts.Transport == nil {
		return nil, ErrMissingTransport
	}
	if opts.Table == nil {
		return nil, errors.New("engine requires a routing table")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	selector := opts.Selector
	if selector == nil {
		selector = forwarding.NewStochasticForwarder(clk)
	}

	policy := opts.Reinforcement
	if policy == nil {
		policy = reinforcement.NewLinear(reinforcement.DefaultConfig().Delta)
	}

	return &Engine{
		local:         opts.Transport.LocalAddress(),
		cfg:           opts.Config,
		table:         opts.Table,
		transport:     opts.Transport,
		selector:      selector,
		reinforcement: policy,
		trap:          packettrap.New(opts.Config.MaxTrapped),
		tracker:       discovery.NewTracker(opts.Config.Discovery, clk),
		duplicates: discovery.NewDuplicateFilter(
			opts.Config.Discovery.DuplicateCacheSize,
			opts.Config.Discovery.DuplicateTTL,
		),
		metrics: opts.Metrics,
	}, nil
}

// LocalAddress returns the address of this node.
func (e *Engine) LocalAddress() transport.Address {
	return e.local
}

// Table returns the routing table.
func (e *Engine) Table() *routing.Table {
	return e.table
}

// Trapped returns the number of packets waiting for dest.
func (e *Engine) Trapped(dest transport.Address) int {
	return e.trap.Count(dest)
}

// DiscoveryInProgress reports whether a route discovery for dest is running.
func (e *Engine) DiscoveryInProgress(dest transport.Address) bool {
	return e.tracker.InProgress(dest)
}

// OnReceive sets the handler for data addressed to this node.
func (e *Engine) OnReceive(handler ReceiveHandler) {
	e.onReceive = handler
}

// OnRouteFailure sets the handler for unreachable destinations.
func (e *Engine) OnRouteFailure(handler RouteFailureHandler) {
	e.onRouteFailure = handler
}

// NewDataPacket builds a data packet originated by this node.
func (e *Engine) NewDataPacket(dest transport.Address, payload []byte) (*transport.Packet, error) {
	if err := limits.ValidatePayload(payload); err != nil {
		return nil, err
	}
	return transport.NewData(e.local, dest, e.cfg.HopLimit, payload), nil
}

// SendPacket runs packet through the forwarding decision pipeline. Ownership
// of packet passes to the engine: it is trapped, handed to the transport or
// released.
func (e *Engine) SendPacket(packet *transport.Packet) Outcome {
	outcome := e.sendPacket(packet)

	e.metrics.PacketOutcome(outcome.String())
	e.updateGauges()

	return outcome
}

func (e *Engine) sendPacket(packet *transport.Packet) Outcome {
	if e.table.TriggerEvaporation() {
		e.metrics.Evaporated()
	}

	dest := packet.Destination

	if packet.HopLimit == 0 {
		logrus.WithFields(logrus.Fields{
			"function":    "Engine.SendPacket",
			"type":        packet.Type.String(),
			"source":      packet.Source.String(),
			"destination": dest.String(),
		}).Debug("Hop limit exceeded, dropping packet")
		packet.Release()
		return OutcomeDropped
	}

	control := packet.Type.IsControl()

	if !control && e.tracker.InProgress(dest) {
		if err := e.trap.Trap(dest, packet); err != nil {
			packet.Release()
			return OutcomeDropped
		}
		return OutcomeTrapped
	}

	if e.table.IsDeliverable(dest) {
		if outcome, ok := e.forward(packet); ok {
			return outcome
		}
	}

	// route control is never trapped and never answered with a route failure
	if control {
		logrus.WithFields(logrus.Fields{
			"function":    "Engine.SendPacket",
			"type":        packet.Type.String(),
			"source":      packet.Source.String(),
			"destination": dest.String(),
		}).Debug("No route for control packet, dropping")
		packet.Release()
		return OutcomeDropped
	}

	if packet.Source == e.local {
		return e.startDiscovery(packet)
	}

	return e.reportRouteFailure(packet)
}

// forward sends packet along a stochastically chosen next hop. It returns
// false if no next hop could be chosen.
func (e *Engine) forward(packet *transport.Packet) (Outcome, bool) {
	dest := packet.Destination

	entry, ok := e.table.GetEntry(dest)
	if !ok {
		return 0, false
	}

	hop, ok := e.selector.Select(entry)
	if !ok {
		return 0, false
	}

	phi := e.table.PheromoneValue(dest, hop.Address)
	if err := e.table.Update(dest, hop.Address, e.reinforcement.Reinforce(phi)); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Engine.forward",
			"destination": dest.String(),
			"next_hop":    hop.Address.String(),
			"error":       err.Error(),
		}).Warn("Failed to reinforce path")
	}

	packet.Sender = e.local
	if err := e.transport.Send(packet, hop.Address); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Engine.forward",
			"type":        packet.Type.String(),
			"destination": dest.String(),
			"next_hop":    hop.Address.String(),
			"error":       err.Error(),
		}).Warn("Transport rejected packet")
		packet.Release()
		return OutcomeSendFailed, true
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Engine.forward",
		"type":        packet.Type.String(),
		"destination": dest.String(),
		"next_hop":    hop.Address.String(),
		"pheromone":   phi,
	}).Debug("Forwarded packet")

	return OutcomeForwarded, true
}

func (e *Engine) startDiscovery(packet *transport.Packet) Outcome {
	dest := packet.Destination

	if err := e.trap.Trap(dest, packet); err != nil {
		packet.Release()
		return OutcomeDropped
	}

	d := e.tracker.Start(dest)
	e.metrics.Discovery("started")

	e.floodFANT(dest, d.ID.String())

	return OutcomeDiscoveryStarted
}

func (e *Engine) floodFANT(dest transport.Address, discoveryID string) {
	fant := transport.NewFANT(e.local, dest, e.seq.Next(), e.cfg.HopLimit)
	e.duplicates.Seen(fant)

	if err := e.transport.Broadcast(fant); err != nil {
		// the discovery deadline retries the flood
		logrus.WithFields(logrus.Fields{
			"function":    "Engine.floodFANT",
			"discovery":   discoveryID,
			"destination": dest.String(),
			"error":       err.Error(),
		}).Warn("Failed to broadcast FANT")
		return
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Engine.floodFANT",
		"discovery":   discoveryID,
		"destination": dest.String(),
		"seq":         fant.Seq,
	}).Debug("Broadcast FANT")
}

// reportRouteFailure tells the source of packet that its destination is
// unreachable from here and releases packet.
func (e *Engine) reportRouteFailure(packet *transport.Packet) Outcome {
	defer packet.Release()

	failure := transport.NewRouteFailure(e.local, packet.Source, packet.Destination, e.seq.Next(), e.cfg.HopLimit)
	e.duplicates.Seen(failure)

	if err := e.transport.Broadcast(failure); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Engine.reportRouteFailure",
			"source":      packet.Source.String(),
			"destination": packet.Destination.String(),
			"error":       err.Error(),
		}).Warn("Failed to broadcast route failure")
		return OutcomeSendFailed
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Engine.reportRouteFailure",
		"source":      packet.Source.String(),
		"destination": packet.Destination.String(),
		"seq":         failure.Seq,
	}).Info("No route, reported route failure")

	return OutcomeRouteFailureBroadcast
}

func (e *Engine) updateGauges() {
	if e.metrics == nil {
		return
	}
	e.metrics.SetState(e.table.Size(), e.trap.Len())
}

// Close releases every trapped packet and forgets in-flight discoveries.
func (e *Engine) Close() {
	e.trap.Clear()
	e.tracker.Clear()
	e.duplicates.Reset()
}
