// Package wire builds and parses the on-wire form of ARA packets: an IPv6
// header followed by the ARA header and the payload.
//
//	+---------------------------+
//	| IPv6 header (40 bytes)    |  source, destination, hop limit,
//	|                           |  next header = 253
//	+---------------------------+
//	| type (1) | seq (1)        |
//	| sender address (16)       |
//	+---------------------------+
//	| payload                   |
//	+---------------------------+
package wire

import (
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/opd-ai/ara/limits"
	"github.com/opd-ai/ara/transport"
)

// NextHeader is the IPv6 next-header value marking an ARA payload. 253 is
// reserved for experimentation by RFC 3692.
const NextHeader layers.IPProtocol = 253

// ErrMalformed indicates a packet that fails the ingress checks
var ErrMalformed = errors.New("malformed packet")

// Codec implements transport.Codec.
type Codec struct{}

// Encode implements transport.Codec.
func (Codec) Encode(packet *transport.Packet) ([]byte, error) { return Encode(packet) }

// Decode implements transport.Codec.
func (Codec) Decode(data []byte) (*transport.Packet, error) { return Decode(data) }

// Encode serializes packet.
func Encode(packet *transport.Packet) ([]byte, error) {
	if !packet.Type.Valid() {
		return nil, fmt.Errorf("%w: %d", transport.ErrUnknownPacketType, packet.Type)
	}
	if err := limits.ValidatePayloadSize(packet.Payload); err != nil {
		return nil, err
	}

	header := make([]byte, limits.ARAHeaderSize+len(packet.Payload))
	header[0] = byte(packet.Type)
	header[1] = packet.Seq
	copy(header[2:limits.ARAHeaderSize], packet.Sender[:])
	copy(header[limits.ARAHeaderSize:], packet.Payload)

	ip := &layers.IPv6{
		Version:    6,
		NextHeader: NextHeader,
		HopLimit:   packet.HopLimit,
		SrcIP:      packet.Source.IP(),
		DstIP:      packet.Destination.IP(),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, gopacket.Payload(header)); err != nil {
		return nil, fmt.Errorf("serialize ipv6: %w", err)
	}

	return buf.Bytes(), nil
}

// Decode parses data into a packet. The returned packet does not reference
// data, so the caller may reuse the buffer.
func Decode(data []byte) (*transport.Packet, error) {
	if len(data) < limits.IPv6HeaderSize+limits.ARAHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes is too short", ErrMalformed, len(data))
	}
	if len(data) > limits.MaxPacket {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrMalformed, len(data), limits.MaxPacket)
	}

	var ip layers.IPv6
	if err := ip.DecodeFromBytes(data, gopacket.NilDecodeFeedback); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ip.Version != 6 {
		return nil, fmt.Errorf("%w: ip version %d", ErrMalformed, ip.Version)
	}
	if ip.NextHeader != NextHeader {
		return nil, fmt.Errorf("%w: next header %d", ErrMalformed, ip.NextHeader)
	}

	body := ip.Payload
	if len(body) < limits.ARAHeaderSize {
		return nil, fmt.Errorf("%w: truncated ara header", ErrMalformed)
	}

	packetType := transport.PacketType(body[0])
	if !packetType.Valid() {
		return nil, fmt.Errorf("%w: %v %d", ErrMalformed, transport.ErrUnknownPacketType, body[0])
	}

	source, err := transport.AddressFromIP(ip.SrcIP)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	destination, err := transport.AddressFromIP(ip.DstIP)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	packet := &transport.Packet{
		Type:        packetType,
		Seq:         body[1],
		Source:      source,
		Destination: destination,
		HopLimit:    ip.HopLimit,
	}
	copy(packet.Sender[:], body[2:limits.ARAHeaderSize])

	if payload := body[limits.ARAHeaderSize:]; len(payload) > 0 {
		packet.Payload = append([]byte(nil), payload...)
	}

	if packetType == transport.PacketRouteFailure && len(packet.Payload) < transport.AddressLen {
		return nil, fmt.Errorf("%w: route failure without destination", ErrMalformed)
	}

	return packet, nil
}
