package simnet

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/opd-ai/ara/transport"
)

// Endpoint is one node's attachment to a Network. It implements
// transport.Transport.
type Endpoint struct {
	network *Network
	local   transport.Address

	mu       sync.RWMutex
	handlers map[transport.PacketType]transport.PacketHandler
	closed   bool
}

var _ transport.Transport = (*Endpoint)(nil)

// Send queues packet for the neighbor nextHop.
func (e *Endpoint) Send(packet *transport.Packet, nextHop transport.Address) error {
	if e.isClosed() {
		return fmt.Errorf("send: %w", transport.ErrTransportClosed)
	}

	n := e.network
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.links[e.local][nextHop] {
		return fmt.Errorf("send to %s: %w", nextHop, transport.ErrUnknownNeighbor)
	}
	return n.enqueue(e.local, nextHop, packet, false)
}

// Broadcast queues packet for every neighbor.
func (e *Endpoint) Broadcast(packet *transport.Packet) error {
	if e.isClosed() {
		return fmt.Errorf("broadcast: %w", transport.ErrTransportClosed)
	}

	n := e.network
	n.mu.Lock()
	defer n.mu.Unlock()

	neighbors := n.neighborsLocked(e.local)
	if len(neighbors) == 0 {
		return transport.ErrNoNeighbors
	}

	for _, neighbor := range neighbors {
		if err := n.enqueue(e.local, neighbor, packet, true); err != nil {
			return err
		}
	}
	return nil
}

// Close detaches the endpoint. Packets queued for it are recorded as failed.
func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	return nil
}

// LocalAddress returns the endpoint's node address.
func (e *Endpoint) LocalAddress() transport.Address {
	return e.local
}

// RegisterHandler registers a handler for a packet type.
func (e *Endpoint) RegisterHandler(packetType transport.PacketType, handler transport.PacketHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.handlers[packetType] = handler
}

func (e *Endpoint) handler(packetType transport.PacketType) transport.PacketHandler {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.handlers[packetType]
}

func (e *Endpoint) isClosed() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.closed
}

func sortAddresses(addrs []transport.Address) {
	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
}
