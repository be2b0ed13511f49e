package evaporation

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Kind selects an evaporation policy.
type Kind string

const (
	KindLinear      Kind = "linear"
	KindExponential Kind = "exponential"
)

var (
	// ErrUnknownKind indicates a policy name that is neither linear nor exponential
	ErrUnknownKind = errors.New("unknown evaporation policy")

	// ErrInvalidInterval indicates a non-positive evaporation interval
	ErrInvalidInterval = errors.New("evaporation interval must be positive")

	// ErrInvalidFactor indicates a factor outside the range the policy accepts
	ErrInvalidFactor = errors.New("invalid evaporation factor")

	// ErrInvalidThreshold indicates a negative threshold
	ErrInvalidThreshold = errors.New("evaporation threshold cannot be negative")
)

// Config holds the parameters shared by all evaporation policies.
type Config struct {
	Kind      Kind          `yaml:"policy"`
	Factor    float64       `yaml:"factor"`
	Threshold float64       `yaml:"threshold"`
	Interval  time.Duration `yaml:"interval"`
}

// DefaultConfig returns the exponential policy used by a freshly configured node.
func DefaultConfig() Config {
	return Config{
		Kind:      KindExponential,
		Factor:    0.9,
		Threshold: 0.75,
		Interval:  2 * time.Second,
	}
}

// Validate checks the configuration against the selected policy.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return ErrInvalidInterval
	}
	if c.Threshold < 0 {
		return ErrInvalidThreshold
	}

	switch c.Kind {
	case KindLinear:
		if c.Factor < 0 {
			return fmt.Errorf("%w: linear factor %v is negative", ErrInvalidFactor, c.Factor)
		}
	case KindExponential:
		if c.Factor <= 0 || c.Factor > 1 {
			return fmt.Errorf("%w: exponential factor %v outside (0, 1]", ErrInvalidFactor, c.Factor)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, c.Kind)
	}

	return nil
}

// Policy decays a pheromone value according to the time elapsed since the
// previous evaporation.
type Policy interface {
	Evaporate(phi float64, elapsed time.Duration) float64
}

// New returns the policy selected by cfg.Kind.
func New(cfg Config) (Policy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Kind {
	case KindLinear:
		return &Linear{cfg: cfg}, nil
	default:
		return &Exponential{cfg: cfg}, nil
	}
}

// Linear subtracts factor once per elapsed interval.
type Linear struct {
	cfg Config
}

// NewLinear creates a linear policy without validating the kind field.
func NewLinear(factor, threshold float64, interval time.Duration) *Linear {
	return &Linear{cfg: Config{Kind: KindLinear, Factor: factor, Threshold: threshold, Interval: interval}}
}

// Evaporate implements Policy.
func (l *Linear) Evaporate(phi float64, elapsed time.Duration) float64 {
	if elapsed == 0 {
		return phi
	}

	multiplicator := float64(elapsed) / float64(l.cfg.Interval)
	result := phi - l.cfg.Factor*multiplicator

	return clamp(result, l.cfg.Threshold)
}

// Exponential multiplies by factor once per elapsed interval, so applying it
// once over n intervals equals applying it n times over one interval.
type Exponential struct {
	cfg Config
}

// NewExponential creates an exponential policy without validating the kind field.
func NewExponential(factor, threshold float64, interval time.Duration) *Exponential {
	return &Exponential{cfg: Config{Kind: KindExponential, Factor: factor, Threshold: threshold, Interval: interval}}
}

// Evaporate implements Policy.
func (e *Exponential) Evaporate(phi float64, elapsed time.Duration) float64 {
	if elapsed == 0 {
		return phi
	}

	multiplicator := float64(elapsed) / float64(e.cfg.Interval)
	result := phi * math.Pow(e.cfg.Factor, multiplicator)

	return clamp(result, e.cfg.Threshold)
}

func clamp(phi, threshold float64) float64 {
	if phi < threshold {
		return 0
	}
	return phi
}
