package transport

import (
	"errors"
	"sync"
)

// PacketType identifies the logical type of an ARA packet.
type PacketType byte

const (
	// PacketData carries application payload
	PacketData PacketType = iota
	// PacketFANT is a forward ant flooded during route discovery
	PacketFANT
	// PacketBANT is a backward ant returning along the discovered path
	PacketBANT
	// PacketRouteFailure reports that a destination could not be reached
	PacketRouteFailure
)

// ErrUnknownPacketType indicates a type byte outside the known set
var ErrUnknownPacketType = errors.New("unknown packet type")

// String returns the protocol name of the packet type.
func (t PacketType) String() string {
	switch t {
	case PacketData:
		return "DATA"
	case PacketFANT:
		return "FANT"
	case PacketBANT:
		return "BANT"
	case PacketRouteFailure:
		return "ROUTE FAILURE"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether t is one of the known packet types.
func (t PacketType) Valid() bool {
	return t <= PacketRouteFailure
}

// IsAnt reports whether t is a forward or backward ant.
func (t PacketType) IsAnt() bool {
	return t == PacketFANT || t == PacketBANT
}

// IsControl reports whether t is a route-control packet (ant or failure).
func (t PacketType) IsControl() bool {
	return t.IsAnt() || t == PacketRouteFailure
}

// Packet is an ARA packet together with the network-layer fields the routing
// engine reads. The byte layout is produced by the wire package.
//
//	Source      - node that originated the packet
//	Destination - final destination
//	Sender      - node that transmitted this copy (the previous hop)
type Packet struct {
	Type        PacketType
	Seq         uint8
	Source      Address
	Destination Address
	Sender      Address
	HopLimit    uint8
	Payload     []byte

	releaseOnce sync.Once
	released    bool
	onRelease   func(*Packet)
}

// NewData creates a data packet originated by source.
func NewData(source, destination Address, hopLimit uint8, payload []byte) *Packet {
	return &Packet{
		Type:        PacketData,
		Source:      source,
		Destination: destination,
		Sender:      source,
		HopLimit:    hopLimit,
		Payload:     payload,
	}
}

// NewFANT creates a forward ant looking for destination.
func NewFANT(source, destination Address, seq, hopLimit uint8) *Packet {
	return &Packet{
		Type:        PacketFANT,
		Seq:         seq,
		Source:      source,
		Destination: destination,
		Sender:      source,
		HopLimit:    hopLimit,
	}
}

// NewBANT creates the backward ant answering fant. The BANT travels from the
// FANT destination back to the FANT source.
func NewBANT(fant *Packet, seq, hopLimit uint8) *Packet {
	return &Packet{
		Type:        PacketBANT,
		Seq:         seq,
		Source:      fant.Destination,
		Destination: fant.Source,
		Sender:      fant.Destination,
		HopLimit:    hopLimit,
	}
}

// NewRouteFailure creates a route failure addressed to destination reporting
// that failed could not be reached from source.
func NewRouteFailure(source, destination, failed Address, seq, hopLimit uint8) *Packet {
	payload := make([]byte, AddressLen)
	copy(payload, failed[:])
	return &Packet{
		Type:        PacketRouteFailure,
		Seq:         seq,
		Source:      source,
		Destination: destination,
		Sender:      source,
		HopLimit:    hopLimit,
		Payload:     payload,
	}
}

// FailedDestination returns the unreachable destination carried by a route
// failure packet.
func (p *Packet) FailedDestination() (Address, bool) {
	if p.Type != PacketRouteFailure || len(p.Payload) < AddressLen {
		return Address{}, false
	}
	var addr Address
	copy(addr[:], p.Payload[:AddressLen])
	return addr, true
}

// Clone returns a copy of p that shares nothing with it and is not released.
func (p *Packet) Clone() *Packet {
	c := &Packet{
		Type:        p.Type,
		Seq:         p.Seq,
		Source:      p.Source,
		Destination: p.Destination,
		Sender:      p.Sender,
		HopLimit:    p.HopLimit,
		onRelease:   p.onRelease,
	}
	if p.Payload != nil {
		c.Payload = append([]byte(nil), p.Payload...)
	}
	return c
}

// SetReleaseHook installs a function called once when the packet is released.
func (p *Packet) SetReleaseHook(fn func(*Packet)) {
	p.onRelease = fn
}

// Release marks the packet as no longer in use and runs the release hook.
// Calling Release more than once has no further effect.
func (p *Packet) Release() {
	p.releaseOnce.Do(func() {
		p.released = true
		if p.onRelease != nil {
			p.onRelease(p)
		}
	})
}

// Released reports whether Release has been called.
func (p *Packet) Released() bool {
	return p.released
}
