package ara

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/opd-ai/ara/config"
	"github.com/opd-ai/ara/engine"
	"github.com/opd-ai/ara/metrics"
	"github.com/opd-ai/ara/reinforcement"
	"github.com/opd-ai/ara/routing"
	"github.com/opd-ai/ara/transport"
	"github.com/opd-ai/ara/wire"
)

// DefaultCloseTimeout bounds how long Close waits for the event loop to stop.
const DefaultCloseTimeout = 5 * time.Second

var (
	// ErrNodeClosed is returned by operations on a closed node
	ErrNodeClosed = errors.New("node closed")

	// ErrAlreadyRunning is returned by a second call to Run
	ErrAlreadyRunning = errors.New("node event loop already running")

	// ErrNoConfig is returned by New without a configuration
	ErrNoConfig = errors.New("node options require a configuration")

	// ErrSendFailed is returned by Send when the transport rejected the packet
	ErrSendFailed = errors.New("transport rejected packet")

	// ErrCloseTimeout is returned by Close when the event loop did not stop
	ErrCloseTimeout = errors.New("timed out waiting for event loop")
)

// ReceiveCallback is called for data addressed to this node.
type ReceiveCallback func(source transport.Address, payload []byte)

// RouteFailureCallback is called when a destination turned out to be
// unreachable.
type RouteFailureCallback func(destination transport.Address)

// Node is an ARA routing node.
type Node struct {
	engine        *engine.Engine
	transport     transport.Transport
	clock         clock.Clock
	checkInterval time.Duration
	closeTimeout  time.Duration

	events   chan func()
	done     chan struct{}
	loopDone chan struct{}
	started  atomic.Bool
	once     sync.Once

	callbackMu           sync.RWMutex
	receiveCallback      ReceiveCallback
	routeFailureCallback RouteFailureCallback
}

// New creates a node. The event loop does not run until Run is called.
func New(options *Options) (*Node, error) {
	if options == nil || options.Config == nil {
		return nil, ErrNoConfig
	}
	cfg := options.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clk := options.Clock
	if clk == nil {
		clk = clock.New()
	}

	tr := options.Transport
	if tr == nil {
		udp, err := newUDPTransport(cfg.Node.Address, cfg.Node.Listen, cfg.Node.Neighbors)
		if err != nil {
			return nil, err
		}
		tr = udp
	}

	var m *metrics.Metrics
	if options.Registerer != nil {
		var err error
		if m, err = metrics.New(options.Registerer); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	table, err := routing.NewTable(cfg.RoutingTable(), clk)
	if err != nil {
		return nil, err
	}

	policy, err := reinforcement.New(cfg.Reinforcement)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(engine.Options{
		Config:        cfg.Engine(),
		Table:         table,
		Transport:     tr,
		Selector:      options.Selector,
		Reinforcement: policy,
		Clock:         clk,
		Metrics:       m,
	})
	if err != nil {
		return nil, err
	}

	queueSize := options.EventQueueSize
	if queueSize <= 0 {
		queueSize = DefaultEventQueueSize
	}

	n := &Node{
		engine:        eng,
		transport:     tr,
		clock:         clk,
		checkInterval: cfg.Discovery.CheckInterval,
		closeTimeout:  DefaultCloseTimeout,
		events:        make(chan func(), queueSize),
		done:          make(chan struct{}),
		loopDone:      make(chan struct{}),
	}

	eng.OnReceive(n.deliver)
	eng.OnRouteFailure(n.routeFailed)
	n.registerHandlers()

	logrus.WithFields(logrus.Fields{
		"function": "New",
		"address":  tr.LocalAddress().String(),
		"policy":   string(cfg.Evaporation.Kind),
	}).Info("ARA node created")

	return n, nil
}

func newUDPTransport(local transport.Address, listen string, neighbors []config.NeighborConfig) (*transport.UDPTransport, error) {
	links := make([]transport.Neighbor, 0, len(neighbors))
	for _, neighbor := range neighbors {
		links = append(links, transport.Neighbor{Address: neighbor.Address, Endpoint: neighbor.Endpoint})
	}
	return transport.NewUDPTransport(local, listen, links, wire.Codec{})
}

// registerHandlers routes every received packet into the event loop.
func (n *Node) registerHandlers() {
	for _, packetType := range []transport.PacketType{
		transport.PacketData,
		transport.PacketFANT,
		transport.PacketBANT,
		transport.PacketRouteFailure,
	} {
		n.transport.RegisterHandler(packetType, n.handlePacket)
	}
}

func (n *Node) handlePacket(packet *transport.Packet) error {
	return n.submit(context.Background(), func() {
		if err := n.engine.HandlePacket(packet); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "Node.handlePacket",
				"type":     packet.Type.String(),
				"sender":   packet.Sender.String(),
				"error":    err.Error(),
			}).Warn("Rejected packet")
		}
	})
}

// submit queues fn for the event loop.
func (n *Node) submit(ctx context.Context, fn func()) error {
	select {
	case <-n.done:
		return ErrNodeClosed
	case <-n.loopDone:
		return ErrNodeClosed
	default:
	}

	select {
	case n.events <- fn:
		return nil
	case <-n.done:
		return ErrNodeClosed
	case <-n.loopDone:
		return ErrNodeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// call runs fn on the event loop and waits for it to finish.
func (n *Node) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := n.submit(ctx, func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-n.loopDone:
		return ErrNodeClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes events until ctx is done or the node is closed. It returns
// nil after Close and ctx.Err() on cancellation.
func (n *Node) Run(ctx context.Context) error {
	if !n.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(n.loopDone)

	ticker := n.clock.Ticker(n.checkInterval)
	defer ticker.Stop()

	logrus.WithFields(logrus.Fields{
		"function":       "Node.Run",
		"address":        n.engine.LocalAddress().String(),
		"check_interval": n.checkInterval.String(),
	}).Info("Node event loop started")

	for {
		select {
		case <-n.done:
			return nil
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-n.done:
			return nil
		case fn := <-n.events:
			fn()
		case <-ticker.C:
			n.engine.CheckDiscoveryTimeouts()
		}
	}
}

// Send originates a data packet for destination and runs it through the
// forwarding pipeline.
func (n *Node) Send(ctx context.Context, destination transport.Address, payload []byte) (engine.Outcome, error) {
	var (
		outcome engine.Outcome
		sendErr error
	)

	err := n.call(ctx, func() {
		packet, err := n.engine.NewDataPacket(destination, payload)
		if err != nil {
			sendErr = err
			return
		}
		outcome = n.engine.SendPacket(packet)
	})
	if err != nil {
		return engine.OutcomeDropped, err
	}
	if sendErr != nil {
		return engine.OutcomeDropped, sendErr
	}

	if outcome == engine.OutcomeSendFailed {
		return outcome, fmt.Errorf("send to %s: %w", destination, ErrSendFailed)
	}
	return outcome, nil
}

// RoutingTable returns a snapshot of the routing table.
func (n *Node) RoutingTable(ctx context.Context) ([]routing.Entry, error) {
	var entries []routing.Entry
	err := n.call(ctx, func() {
		entries = n.engine.Table().Snapshot()
	})
	return entries, err
}

// DiscoveryInProgress reports whether a route discovery for destination is
// running.
func (n *Node) DiscoveryInProgress(ctx context.Context, destination transport.Address) (bool, error) {
	var running bool
	err := n.call(ctx, func() {
		running = n.engine.DiscoveryInProgress(destination)
	})
	return running, err
}

// LocalAddress returns the node's address.
func (n *Node) LocalAddress() transport.Address {
	return n.engine.LocalAddress()
}

// OnReceive sets the callback for data addressed to this node.
func (n *Node) OnReceive(callback ReceiveCallback) {
	n.callbackMu.Lock()
	defer n.callbackMu.Unlock()
	n.receiveCallback = callback
}

// OnRouteFailure sets the callback for unreachable destinations.
func (n *Node) OnRouteFailure(callback RouteFailureCallback) {
	n.callbackMu.Lock()
	defer n.callbackMu.Unlock()
	n.routeFailureCallback = callback
}

func (n *Node) deliver(packet *transport.Packet) {
	defer packet.Release()

	n.callbackMu.RLock()
	callback := n.receiveCallback
	n.callbackMu.RUnlock()

	if callback != nil {
		callback(packet.Source, packet.Payload)
	}
}

func (n *Node) routeFailed(destination transport.Address) {
	n.callbackMu.RLock()
	callback := n.routeFailureCallback
	n.callbackMu.RUnlock()

	if callback != nil {
		callback(destination)
	}
}

// Close stops the event loop, releases trapped packets and closes the
// transport. Calling Close more than once has no further effect. If the
// event loop does not stop in time, the engine state it owns is left alone
// and ErrCloseTimeout is returned.
func (n *Node) Close() error {
	var err error

	n.once.Do(func() {
		close(n.done)

		stopped := true
		if n.started.Load() {
			select {
			case <-n.loopDone:
			case <-time.After(n.closeTimeout):
				stopped = false
				err = multierr.Append(err, ErrCloseTimeout)
			}
		}

		if stopped {
			n.engine.Close()
		}

		if cerr := n.transport.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("close transport: %w", cerr))
		}

		logrus.WithFields(logrus.Fields{
			"function": "Node.Close",
			"address":  n.engine.LocalAddress().String(),
		}).Info("Node closed")
	})

	return err
}
