// Package reinforcement implements the pheromone boost applied to a path
// after a packet has been forwarded along it.
package reinforcement

import (
	"errors"
	"fmt"
)

// ErrInvalidDelta indicates a negative reinforcement delta
var ErrInvalidDelta = errors.New("reinforcement delta cannot be negative")

// Policy computes the reinforced pheromone value for a next hop.
type Policy interface {
	Reinforce(phi float64) float64
}

// Config holds the parameters of the linear reinforcement policy.
type Config struct {
	Delta float64 `yaml:"delta"`
}

// DefaultConfig returns the reinforcement used by a freshly configured node.
func DefaultConfig() Config {
	return Config{Delta: 1.0}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Delta < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDelta, c.Delta)
	}
	return nil
}

// New returns the linear policy configured by cfg.
func New(cfg Config) (Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewLinear(cfg.Delta), nil
}

// Linear adds a fixed delta to the current pheromone value.
type Linear struct {
	delta float64
}

// NewLinear creates a linear reinforcement policy.
func NewLinear(delta float64) *Linear {
	return &Linear{delta: delta}
}

// Reinforce implements Policy.
func (l *Linear) Reinforce(phi float64) float64 {
	return phi + l.delta
}
