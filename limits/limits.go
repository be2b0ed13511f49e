// Package limits provides the size limits for ARA packets.
// This ensures consistent validation between the node API and the wire codec.
package limits

import (
	"errors"
	"fmt"
)

const (
	// MinLinkMTU is the IPv6 minimum link MTU every link must support
	MinLinkMTU = 1280

	// IPv6HeaderSize is the size of the fixed IPv6 header
	IPv6HeaderSize = 40

	// ARAHeaderSize is the size of the ARA header following the IPv6 header:
	// type (1) + sequence number (1) + sender address (16)
	ARAHeaderSize = 18

	// MaxPayload is the largest payload that fits a single packet on a
	// minimum-MTU link
	MaxPayload = MinLinkMTU - IPv6HeaderSize - ARAHeaderSize

	// MaxPacket is the largest encoded packet
	MaxPacket = IPv6HeaderSize + ARAHeaderSize + MaxPayload

	// DefaultHopLimit is the hop limit given to locally originated packets
	DefaultHopLimit = 64
)

var (
	// ErrPayloadEmpty indicates an empty payload was provided
	ErrPayloadEmpty = errors.New("empty payload")

	// ErrPayloadTooLarge indicates payload exceeds maximum size
	ErrPayloadTooLarge = errors.New("payload too large")
)

// ValidatePayload validates an application payload against MaxPayload.
// Returns an error with context if the payload is empty or exceeds the limit.
func ValidatePayload(payload []byte) error {
	if len(payload) == 0 {
		return ErrPayloadEmpty
	}
	return ValidatePayloadSize(payload)
}

// ValidatePayloadSize checks only the upper bound; control packets may carry
// an empty payload.
func ValidatePayloadSize(payload []byte) error {
	if len(payload) > MaxPayload {
		return fmt.Errorf("%w: size %d exceeds limit %d", ErrPayloadTooLarge, len(payload), MaxPayload)
	}
	return nil
}
