package transport

// PacketHandler processes an incoming packet.
type PacketHandler func(packet *Packet) error

// Transport is the link layer the routing engine transmits through. Send and
// Broadcast must not block; an error means the packet was not handed to the
// lower layer and will not be retried.
type Transport interface {
	// Send transmits packet to a single neighbor.
	Send(packet *Packet, nextHop Address) error

	// Broadcast transmits packet to every neighbor.
	Broadcast(packet *Packet) error

	// Close shuts down the transport.
	Close() error

	// LocalAddress returns the node address this transport sends from.
	LocalAddress() Address

	// RegisterHandler registers a handler for a specific packet type.
	RegisterHandler(packetType PacketType, handler PacketHandler)
}

// Codec converts packets to and from their on-wire form.
type Codec interface {
	Encode(packet *Packet) ([]byte, error)
	Decode(data []byte) (*Packet, error)
}
