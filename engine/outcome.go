package engine

// Outcome is the terminal state SendPacket reached for a packet.
type Outcome int

const (
	// OutcomeDropped means the packet was released without being sent.
	OutcomeDropped Outcome = iota
	// OutcomeTrapped means the packet waits for a discovery in flight.
	OutcomeTrapped
	// OutcomeForwarded means the packet was handed to the transport.
	OutcomeForwarded
	// OutcomeDiscoveryStarted means the packet was trapped and a FANT flooded.
	OutcomeDiscoveryStarted
	// OutcomeRouteFailureBroadcast means a route failure was sent towards the
	// packet's source and the packet was released.
	OutcomeRouteFailureBroadcast
	// OutcomeSendFailed means the transport rejected the packet, which was
	// released.
	OutcomeSendFailed
)

// String returns the outcome name, also used as the metrics label.
func (o Outcome) String() string {
	switch o {
	case OutcomeDropped:
		return "dropped"
	case OutcomeTrapped:
		return "trapped"
	case OutcomeForwarded:
		return "forwarded"
	case OutcomeDiscoveryStarted:
		return "discovery_started"
	case OutcomeRouteFailureBroadcast:
		return "route_failure"
	case OutcomeSendFailed:
		return "send_failed"
	default:
		return "unknown"
	}
}
