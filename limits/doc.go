// Package limits provides the packet size constants and validation functions
// shared by the node API and the wire codec.
//
// # Size Hierarchy
//
//   - MinLinkMTU (1280 bytes): the IPv6 minimum link MTU. Every encoded packet
//     must fit into it so that no fragmentation is needed on any mesh link.
//
//   - IPv6HeaderSize (40 bytes) and ARAHeaderSize (18 bytes): the fixed
//     headers in front of the payload.
//
//   - MaxPayload (1222 bytes): what remains for application data.
//
// # Validation Functions
//
//	err := limits.ValidatePayload(payload)
//	if err != nil {
//	    // ErrPayloadEmpty or ErrPayloadTooLarge
//	}
//
// Control packets may have an empty payload and are checked with
// ValidatePayloadSize instead.
package limits
