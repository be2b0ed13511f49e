package ara

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/opd-ai/ara/config"
	"github.com/opd-ai/ara/engine"
	"github.com/opd-ai/ara/transport"
)

// DefaultEventQueueSize is the capacity of a node's event channel.
const DefaultEventQueueSize = 256

// Options contains configuration options for creating a Node.
type Options struct {
	// Config is the node configuration. It must name the node address.
	Config *config.Config

	// Transport replaces the UDP transport built from Config.Node.
	Transport transport.Transport

	// Clock drives evaporation and discovery deadlines. Defaults to the wall
	// clock.
	Clock clock.Clock

	// Registerer receives the node's Prometheus collectors. Nil disables
	// metrics.
	Registerer prometheus.Registerer

	// Selector replaces stochastic next hop selection.
	Selector engine.Selector

	// EventQueueSize is the capacity of the event channel.
	EventQueueSize int
}

// NewOptions creates options for cfg with every other field defaulted.
func NewOptions(cfg *config.Config) *Options {
	return &Options{
		Config:         cfg,
		EventQueueSize: DefaultEventQueueSize,
	}
}
