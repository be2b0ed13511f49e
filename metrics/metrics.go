// Package metrics exposes routing engine counters to Prometheus.
//
// All methods are safe to call on a nil *Metrics, so components can run
// without instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ara"

// Metrics holds the collectors of one node.
type Metrics struct {
	Packets        *prometheus.CounterVec
	ControlPackets *prometheus.CounterVec
	Discoveries    *prometheus.CounterVec
	Destinations   prometheus.Gauge
	TrappedPackets prometheus.Gauge
	Evaporations   prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil registerer
// leaves them unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Packets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_total",
			Help:      "Outbound packets by forwarding outcome.",
		}, []string{"outcome"}),
		ControlPackets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_packets_total",
			Help:      "Received route control packets by type.",
		}, []string{"type"}),
		Discoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discoveries_total",
			Help:      "Route discoveries by result.",
		}, []string{"result"}),
		Destinations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "routing_destinations",
			Help:      "Destinations in the routing table.",
		}),
		TrappedPackets: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "trapped_packets",
			Help:      "Packets waiting for route discovery.",
		}),
		Evaporations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaporations_total",
			Help:      "Table-wide pheromone evaporation runs.",
		}),
	}

	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{
		m.Packets, m.ControlPackets, m.Discoveries,
		m.Destinations, m.TrappedPackets, m.Evaporations,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// PacketOutcome counts an outbound packet with the given outcome label.
func (m *Metrics) PacketOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Packets.WithLabelValues(outcome).Inc()
}

// ControlPacket counts a received control packet.
func (m *Metrics) ControlPacket(kind string) {
	if m == nil {
		return
	}
	m.ControlPackets.WithLabelValues(kind).Inc()
}

// Discovery counts a discovery event such as "started" or "failed".
func (m *Metrics) Discovery(result string) {
	if m == nil {
		return
	}
	m.Discoveries.WithLabelValues(result).Inc()
}

// Evaporated counts one evaporation run.
func (m *Metrics) Evaporated() {
	if m == nil {
		return
	}
	m.Evaporations.Inc()
}

// SetState records the routing table size and trap occupancy.
func (m *Metrics) SetState(destinations, trapped int) {
	if m == nil {
		return
	}
	m.Destinations.Set(float64(destinations))
	m.TrappedPackets.Set(float64(trapped))
}
