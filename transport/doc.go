// Package transport defines the packet model of the ARA routing protocol and
// the link layer it is transmitted over.
//
// # Packets
//
// Every ARA packet carries a one-byte logical type, a one-byte sequence
// number, the originating source, the final destination, the sender (the
// neighbor that transmitted this copy) and a hop limit:
//
//	PacketData         - application payload
//	PacketFANT         - forward ant, flooded to discover a route
//	PacketBANT         - backward ant, travels the discovered path back
//	PacketRouteFailure - reports an unreachable destination
//
// Packets are released explicitly once the routing engine is done with them.
// Release is idempotent and runs an optional hook, which lets a lower layer
// recycle buffers.
//
// # Transports
//
// The Transport interface is what the engine transmits through:
//
//	type Transport interface {
//	    Send(packet *Packet, nextHop Address) error
//	    Broadcast(packet *Packet) error
//	    Close() error
//	    LocalAddress() Address
//	    RegisterHandler(packetType PacketType, handler PacketHandler)
//	}
//
// UDPTransport emulates a broadcast radio on top of UDP using a static list of
// neighbors. The byte encoding is supplied by a Codec, normally wire.Codec.
//
//	t, err := transport.NewUDPTransport(self, ":7000", neighbors, wire.Codec{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer t.Close()
package transport
