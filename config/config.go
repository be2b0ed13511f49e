// Package config loads the configuration of an ARA node.
//
// A configuration file is YAML. Every field is optional; missing fields keep
// the values from Default:
//
//	node:
//	  address: fe80::1
//	  listen: 0.0.0.0:7000
//	  neighbors:
//	    - address: fe80::2
//	      endpoint: 192.0.2.2:7000
//	routing:
//	  max_entries: 256
//	  initial_pheromone: 1.0
//	evaporation:
//	  policy: exponential
//	  factor: 0.9
//	  threshold: 0.75
//	  interval: 2s
//	discovery:
//	  timeout: 5s
//	  retries: 2
//	log:
//	  level: debug
//	  format: json
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/ara/discovery"
	"github.com/opd-ai/ara/engine"
	"github.com/opd-ai/ara/evaporation"
	"github.com/opd-ai/ara/limits"
	"github.com/opd-ai/ara/packettrap"
	"github.com/opd-ai/ara/reinforcement"
	"github.com/opd-ai/ara/routing"
	"github.com/opd-ai/ara/transport"
)

// ErrNoAddress indicates a node configuration without a node address.
var ErrNoAddress = errors.New("node address is required")

// Config is the complete node configuration.
type Config struct {
	Node          NodeConfig           `yaml:"node"`
	Routing       RoutingConfig        `yaml:"routing"`
	Evaporation   evaporation.Config   `yaml:"evaporation"`
	Reinforcement reinforcement.Config `yaml:"reinforcement"`
	Discovery     discovery.Config     `yaml:"discovery"`
	Trap          TrapConfig           `yaml:"trap"`
	Log           LogConfig            `yaml:"log"`
	Metrics       MetricsConfig        `yaml:"metrics"`
}

// NodeConfig identifies the node and its radio neighbors.
type NodeConfig struct {
	Address   transport.Address `yaml:"address"`
	Listen    string            `yaml:"listen"`
	Neighbors []NeighborConfig  `yaml:"neighbors,omitempty"`
}

// NeighborConfig maps a neighbor's node address to its UDP endpoint.
type NeighborConfig struct {
	Address  transport.Address `yaml:"address"`
	Endpoint string            `yaml:"endpoint"`
}

// RoutingConfig holds the routing table limits.
type RoutingConfig struct {
	MaxEntries       int     `yaml:"max_entries"`
	MaxNextHops      int     `yaml:"max_next_hops"`
	InitialPheromone float64 `yaml:"initial_pheromone"`
	HopLimit         uint8   `yaml:"hop_limit"`
}

// TrapConfig bounds the packets held during route discovery.
type TrapConfig struct {
	MaxPerDestination int `yaml:"max_per_destination"`
}

// LogConfig selects the logrus level and formatter.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// Default returns a configuration with every default applied. The node
// address is left unspecified.
func Default() *Config {
	routingDefaults := routing.DefaultConfig()
	engineDefaults := engine.DefaultConfig()

	return &Config{
		Node: NodeConfig{
			Listen: "0.0.0.0:7000",
		},
		Routing: RoutingConfig{
			MaxEntries:       routingDefaults.MaxEntries,
			MaxNextHops:      routingDefaults.MaxNextHops,
			InitialPheromone: engineDefaults.InitialPheromone,
			HopLimit:         limits.DefaultHopLimit,
		},
		Evaporation:   evaporation.DefaultConfig(),
		Reinforcement: reinforcement.DefaultConfig(),
		Discovery:     discovery.DefaultConfig(),
		Trap: TrapConfig{
			MaxPerDestination: packettrap.DefaultMaxPerDestination,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Address: ":9100",
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":  "config.Parse",
		"address":   cfg.Node.Address.String(),
		"neighbors": len(cfg.Node.Neighbors),
		"policy":    string(cfg.Evaporation.Kind),
	}).Debug("Loaded configuration")

	return cfg, nil
}

// Marshal encodes the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks every section and reports all problems at once.
func (c *Config) Validate() error {
	var err error

	if c.Node.Address.IsUnspecified() {
		err = multierr.Append(err, ErrNoAddress)
	}
	for i, neighbor := range c.Node.Neighbors {
		if neighbor.Address.IsUnspecified() {
			err = multierr.Append(err, fmt.Errorf("neighbor %d: address is required", i))
		}
		if neighbor.Endpoint == "" {
			err = multierr.Append(err, fmt.Errorf("neighbor %d: endpoint is required", i))
		}
		if neighbor.Address == c.Node.Address {
			err = multierr.Append(err, fmt.Errorf("neighbor %d: node cannot neighbor itself", i))
		}
	}

	err = multierr.Append(err, c.RoutingTable().Validate())
	err = multierr.Append(err, c.Reinforcement.Validate())
	err = multierr.Append(err, c.Engine().Validate())

	if _, lerr := logrus.ParseLevel(c.Log.Level); lerr != nil {
		err = multierr.Append(err, lerr)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		err = multierr.Append(err, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	if c.Metrics.Enabled && c.Metrics.Address == "" {
		err = multierr.Append(err, errors.New("metrics address is required when metrics are enabled"))
	}

	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RoutingTable returns the routing table configuration.
func (c *Config) RoutingTable() routing.Config {
	return routing.Config{
		MaxEntries:  c.Routing.MaxEntries,
		MaxNextHops: c.Routing.MaxNextHops,
		NextHopTTL:  c.Routing.HopLimit,
		Evaporation: c.Evaporation,
	}
}

// Engine returns the forwarding engine configuration.
func (c *Config) Engine() engine.Config {
	return engine.Config{
		InitialPheromone: c.Routing.InitialPheromone,
		HopLimit:         c.Routing.HopLimit,
		MaxTrapped:       c.Trap.MaxPerDestination,
		Discovery:        c.Discovery,
	}
}

// ApplyLogging configures the standard logrus logger.
func (c *Config) ApplyLogging() error {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	if c.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
