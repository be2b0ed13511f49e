package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Neighbor maps a node address to the UDP endpoint its radio is emulated on.
type Neighbor struct {
	Address  Address
	Endpoint string
}

// UDPTransport emulates a broadcast radio link over UDP. Broadcast sends a
// copy to every configured neighbor, Send sends to one of them.
// It satisfies the Transport interface.
type UDPTransport struct {
	conn      net.PacketConn
	local     Address
	codec     Codec
	neighbors map[Address]net.Addr
	handlers  map[PacketType]PacketHandler
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewUDPTransport listens on listenAddr and starts the receive loop.
func NewUDPTransport(local Address, listenAddr string, neighbors []Neighbor, codec Codec) (*UDPTransport, error) {
	resolved := make(map[Address]net.Addr, len(neighbors))
	for _, n := range neighbors {
		udpAddr, err := net.ResolveUDPAddr("udp", n.Endpoint)
		if err != nil {
			return nil, newError("resolve", n.Endpoint, err)
		}
		resolved[n.Address] = udpAddr
	}

	conn, err := net.ListenPacket("udp", listenAddr)
	if err != nil {
		return nil, newError("listen", listenAddr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	t := &UDPTransport{
		conn:      conn,
		local:     local,
		codec:     codec,
		neighbors: resolved,
		handlers:  make(map[PacketType]PacketHandler),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}

	logrus.WithFields(logrus.Fields{
		"function":  "NewUDPTransport",
		"local":     local.String(),
		"listen":    conn.LocalAddr().String(),
		"neighbors": len(resolved),
	}).Info("UDP transport listening")

	go t.processPackets()

	return t, nil
}

// RegisterHandler registers a handler for a specific packet type.
func (t *UDPTransport) RegisterHandler(packetType PacketType, handler PacketHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.handlers[packetType] = handler
}

// AddNeighbor adds or replaces the endpoint of a neighbor.
func (t *UDPTransport) AddNeighbor(addr Address, endpoint net.Addr) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.neighbors[addr] = endpoint
}

// Send transmits packet to a single neighbor.
func (t *UDPTransport) Send(packet *Packet, nextHop Address) error {
	if t.ctx.Err() != nil {
		return newError("send", nextHop.String(), ErrTransportClosed)
	}

	t.mu.RLock()
	endpoint, ok := t.neighbors[nextHop]
	t.mu.RUnlock()
	if !ok {
		return newError("send", nextHop.String(), ErrUnknownNeighbor)
	}

	data, err := t.codec.Encode(packet)
	if err != nil {
		return newError("encode", nextHop.String(), err)
	}

	if _, err := t.conn.WriteTo(data, endpoint); err != nil {
		return newError("send", nextHop.String(), err)
	}
	return nil
}

// Broadcast transmits packet to every neighbor. It fails only if the packet
// could not be handed to any of them.
func (t *UDPTransport) Broadcast(packet *Packet) error {
	if t.ctx.Err() != nil {
		return newError("broadcast", "", ErrTransportClosed)
	}

	data, err := t.codec.Encode(packet)
	if err != nil {
		return newError("encode", "", err)
	}

	t.mu.RLock()
	endpoints := make([]net.Addr, 0, len(t.neighbors))
	for _, endpoint := range t.neighbors {
		endpoints = append(endpoints, endpoint)
	}
	t.mu.RUnlock()

	if len(endpoints) == 0 {
		return newError("broadcast", "", ErrNoNeighbors)
	}

	var lastErr error
	sent := 0
	for _, endpoint := range endpoints {
		if _, err := t.conn.WriteTo(data, endpoint); err != nil {
			lastErr = err
			continue
		}
		sent++
	}

	if sent == 0 {
		return newError("broadcast", "", lastErr)
	}
	return nil
}

// Close shuts down the transport and waits for the receive loop to exit.
func (t *UDPTransport) Close() error {
	t.cancel()
	err := t.conn.Close()
	<-t.done
	return err
}

// LocalAddress returns the node address of this transport.
func (t *UDPTransport) LocalAddress() Address {
	return t.local
}

// LocalEndpoint returns the UDP endpoint the transport is listening on.
func (t *UDPTransport) LocalEndpoint() net.Addr {
	return t.conn.LocalAddr()
}

// processPackets handles incoming packets until the transport is closed.
func (t *UDPTransport) processPackets() {
	defer close(t.done)
	buffer := make([]byte, 2048)

	for {
		select {
		case <-t.ctx.Done():
			return
		default:
			t.processIncomingPacket(buffer)
		}
	}
}

// processIncomingPacket reads, decodes and dispatches a single packet.
func (t *UDPTransport) processIncomingPacket(buffer []byte) {
	_ = t.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))

	n, addr, err := t.conn.ReadFrom(buffer)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return
		}
		if t.ctx.Err() == nil {
			logrus.WithFields(logrus.Fields{
				"function": "UDPTransport.processIncomingPacket",
				"error":    err.Error(),
			}).Warn("Read failed")
		}
		return
	}

	packet, err := t.codec.Decode(buffer[:n])
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "UDPTransport.processIncomingPacket",
			"from":     addr.String(),
			"size":     n,
			"error":    err.Error(),
		}).Debug("Discarding malformed packet")
		return
	}

	t.dispatchPacketToHandler(packet)
}

// dispatchPacketToHandler runs the handler registered for the packet type.
// Handlers run on the receive goroutine so arrival order is preserved.
func (t *UDPTransport) dispatchPacketToHandler(packet *Packet) {
	t.mu.RLock()
	handler, exists := t.handlers[packet.Type]
	t.mu.RUnlock()

	if !exists {
		return
	}

	if err := handler(packet); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "UDPTransport.dispatchPacketToHandler",
			"type":     packet.Type.String(),
			"error":    err.Error(),
		}).Debug("Packet handler returned error")
	}
}
