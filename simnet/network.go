package simnet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ara/transport"
)

// ErrNoHandler is recorded when a delivered packet has no registered handler.
var ErrNoHandler = errors.New("no handler registered for packet type")

// Transmission is a packet in flight between two endpoints.
type Transmission struct {
	From      transport.Address
	To        transport.Address
	Broadcast bool
	Packet    *transport.Packet

	data []byte
}

// DeliveryRecord describes one delivery attempt.
type DeliveryRecord struct {
	From      transport.Address
	To        transport.Address
	Type      transport.PacketType
	Seq       uint8
	Broadcast bool
	Success   bool
	Error     error
}

// Stats summarizes the network.
type Stats struct {
	Nodes      int
	Links      int
	Deliveries int
	Failed     int
	InFlight   int
}

// Network is an in-memory radio medium.
type Network struct {
	codec transport.Codec

	mu        sync.Mutex
	endpoints map[transport.Address]*Endpoint
	links     map[transport.Address]map[transport.Address]bool
	queue     []Transmission
	log       []DeliveryRecord
	notify    chan struct{}
}

// NewNetwork creates an empty network. A nil codec passes packet copies
// between endpoints without encoding them.
func NewNetwork(codec transport.Codec) *Network {
	return &Network{
		codec:     codec,
		endpoints: make(map[transport.Address]*Endpoint),
		links:     make(map[transport.Address]map[transport.Address]bool),
		notify:    make(chan struct{}, 1),
	}
}

// Join adds an endpoint for addr, replacing any earlier one.
func (n *Network) Join(addr transport.Address) *Endpoint {
	ep := &Endpoint{
		network:  n,
		local:    addr,
		handlers: make(map[transport.PacketType]transport.PacketHandler),
	}

	n.mu.Lock()
	n.endpoints[addr] = ep
	n.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function": "Network.Join",
		"address":  addr.String(),
	}).Debug("Endpoint joined simulated network")

	return ep
}

// Link connects a and b in both directions.
func (n *Network) Link(a, b transport.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.setLink(a, b, true)
	n.setLink(b, a, true)
}

// Unlink removes the link between a and b.
func (n *Network) Unlink(a, b transport.Address) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.setLink(a, b, false)
	n.setLink(b, a, false)
}

func (n *Network) setLink(from, to transport.Address, up bool) {
	if !up {
		delete(n.links[from], to)
		return
	}
	if n.links[from] == nil {
		n.links[from] = make(map[transport.Address]bool)
	}
	n.links[from][to] = true
}

// Linked reports whether a and b are neighbors.
func (n *Network) Linked(a, b transport.Address) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.links[a][b]
}

// Neighbors returns the addresses linked to addr.
func (n *Network) Neighbors(addr transport.Address) []transport.Address {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.neighborsLocked(addr)
}

func (n *Network) neighborsLocked(addr transport.Address) []transport.Address {
	result := make([]transport.Address, 0, len(n.links[addr]))
	for neighbor := range n.links[addr] {
		result = append(result, neighbor)
	}
	sortAddresses(result)
	return result
}

func (n *Network) enqueue(from, to transport.Address, packet *transport.Packet, broadcast bool) error {
	t := Transmission{From: from, To: to, Broadcast: broadcast, Packet: packet.Clone()}

	if n.codec != nil {
		data, err := n.codec.Encode(packet)
		if err != nil {
			return err
		}
		t.data = data
	}

	n.queue = append(n.queue, t)

	select {
	case n.notify <- struct{}{}:
	default:
	}
	return nil
}

// Pending returns the transmissions waiting for delivery.
func (n *Network) Pending() []Transmission {
	n.mu.Lock()
	defer n.mu.Unlock()

	result := make([]Transmission, len(n.queue))
	copy(result, n.queue)
	return result
}

// Drop discards every pending transmission.
func (n *Network) Drop() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	dropped := len(n.queue)
	n.queue = nil
	return dropped
}

// Step delivers the oldest pending transmission. It returns false when
// nothing was pending.
func (n *Network) Step() bool {
	n.mu.Lock()
	if len(n.queue) == 0 {
		n.mu.Unlock()
		return false
	}
	t := n.queue[0]
	n.queue = n.queue[1:]
	receiver, ok := n.endpoints[t.To]
	n.mu.Unlock()

	err := n.deliver(t, receiver, ok)

	n.mu.Lock()
	n.log = append(n.log, DeliveryRecord{
		From:      t.From,
		To:        t.To,
		Type:      t.Packet.Type,
		Seq:       t.Packet.Seq,
		Broadcast: t.Broadcast,
		Success:   err == nil,
		Error:     err,
	})
	n.mu.Unlock()

	return true
}

func (n *Network) deliver(t Transmission, receiver *Endpoint, ok bool) error {
	if !ok || receiver.isClosed() {
		return fmt.Errorf("%w: %s", transport.ErrUnknownNeighbor, t.To)
	}

	packet := t.Packet.Clone()
	if t.data != nil {
		var err error
		packet, err = n.codec.Decode(t.data)
		if err != nil {
			return err
		}
	}

	handler := receiver.handler(packet.Type)
	if handler == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, packet.Type)
	}

	if err := handler(packet); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "Network.deliver",
			"from":     t.From.String(),
			"to":       t.To.String(),
			"type":     packet.Type.String(),
			"error":    err.Error(),
		}).Debug("Handler rejected packet")
		return err
	}
	return nil
}

// Flush delivers pending transmissions, including those queued by handlers
// while flushing, until none remain. It returns the number delivered.
func (n *Network) Flush() int {
	delivered := 0
	for n.Step() {
		delivered++
	}
	return delivered
}

// Start delivers transmissions from a background goroutine until ctx is
// done.
func (n *Network) Start(ctx context.Context) {
	go func() {
		for {
			n.Flush()
			select {
			case <-ctx.Done():
				return
			case <-n.notify:
			}
		}
	}()
}

// DeliveryLog returns a copy of the delivery log.
func (n *Network) DeliveryLog() []DeliveryRecord {
	n.mu.Lock()
	defer n.mu.Unlock()

	log := make([]DeliveryRecord, len(n.log))
	copy(log, n.log)
	return log
}

// ClearDeliveryLog empties the delivery log.
func (n *Network) ClearDeliveryLog() {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.log = nil
}

// Stats returns a summary of the network.
func (n *Network) Stats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()

	links := 0
	for _, neighbors := range n.links {
		links += len(neighbors)
	}

	failed := 0
	for _, record := range n.log {
		if !record.Success {
			failed++
		}
	}

	return Stats{
		Nodes:      len(n.endpoints),
		Links:      links / 2,
		Deliveries: len(n.log),
		Failed:     failed,
		InFlight:   len(n.queue),
	}
}
