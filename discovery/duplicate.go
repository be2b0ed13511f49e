package discovery

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/opd-ai/ara/transport"
)

// packetKey identifies a control packet. The sequence number wraps after 256
// packets, so the destination and, for route failures, the failed address
// keep packets of unrelated floods apart.
type packetKey struct {
	source      transport.Address
	destination transport.Address
	failed      transport.Address
	seq         uint8
	kind        transport.PacketType
}

func keyOf(packet *transport.Packet) packetKey {
	key := packetKey{
		source:      packet.Source,
		destination: packet.Destination,
		seq:         packet.Seq,
		kind:        packet.Type,
	}
	if failed, ok := packet.FailedDestination(); ok {
		key.failed = failed
	}
	return key
}

// DuplicateFilter reports control packets that were already seen.
type DuplicateFilter struct {
	seen *expirable.LRU[packetKey, struct{}]
}

// NewDuplicateFilter remembers up to size packets, each for ttl.
func NewDuplicateFilter(size int, ttl time.Duration) *DuplicateFilter {
	return &DuplicateFilter{
		seen: expirable.NewLRU[packetKey, struct{}](size, nil, ttl),
	}
}

// Seen records packet and reports whether a packet with the same source,
// destination, sequence number and type was recorded before.
func (f *DuplicateFilter) Seen(packet *transport.Packet) bool {
	key := keyOf(packet)
	if f.seen.Contains(key) {
		return true
	}
	f.seen.Add(key, struct{}{})
	return false
}

// Len returns the number of remembered packets.
func (f *DuplicateFilter) Len() int {
	return f.seen.Len()
}

// Reset forgets every packet.
func (f *DuplicateFilter) Reset() {
	f.seen.Purge()
}
