package transport

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// AddressLen is the width of an ARA node address in bytes.
const AddressLen = 16

// ErrInvalidAddress indicates a string that is not a valid node address
var ErrInvalidAddress = errors.New("invalid node address")

// Address identifies a node in the mesh. It is an IPv6-sized opaque value,
// comparable and usable as a map key.
type Address [AddressLen]byte

// Unspecified is the zero address.
var Unspecified Address

// ParseAddress parses an IPv6 (or IPv4-mapped) textual address.
func ParseAddress(s string) (Address, error) {
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, s, err)
	}
	return Address(ip.As16()), nil
}

// MustParseAddress is like ParseAddress but panics on error. It is intended
// for tests and static tables.
func MustParseAddress(s string) Address {
	addr, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return addr
}

// AddressFromIP converts a 16-byte net.IP into an Address.
func AddressFromIP(ip net.IP) (Address, error) {
	ip16 := ip.To16()
	if ip16 == nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, ip)
	}
	var addr Address
	copy(addr[:], ip16)
	return addr, nil
}

// IP returns the address as a net.IP.
func (a Address) IP() net.IP {
	ip := make(net.IP, AddressLen)
	copy(ip, a[:])
	return ip
}

// IsUnspecified reports whether a is the zero address.
func (a Address) IsUnspecified() bool {
	return a == Unspecified
}

// String returns the canonical IPv6 text form.
func (a Address) String() string {
	return netip.AddrFrom16(a).String()
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
