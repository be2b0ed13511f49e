package discovery

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ara/transport"
)

var (
	// ErrInvalidTimeout indicates a non-positive discovery timeout
	ErrInvalidTimeout = errors.New("discovery timeout must be positive")

	// ErrInvalidRetries indicates a negative retry count
	ErrInvalidRetries = errors.New("discovery retries cannot be negative")

	// ErrDuplicateTTLTooLong indicates a duplicate ttl that outlives a
	// discovery attempt
	ErrDuplicateTTLTooLong = errors.New("duplicate ttl cannot exceed the discovery timeout")
)

// Config controls discovery deadlines and duplicate suppression.
type Config struct {
	// Timeout is how long a single FANT flood may go unanswered.
	Timeout time.Duration `yaml:"timeout"`
	// Retries is the number of additional floods before giving up.
	Retries int `yaml:"retries"`
	// CheckInterval is how often the node looks for expired discoveries.
	CheckInterval time.Duration `yaml:"check_interval"`
	// DuplicateCacheSize bounds the number of remembered control packets.
	DuplicateCacheSize int `yaml:"duplicate_cache_size"`
	// DuplicateTTL is how long a control packet is remembered. It may not
	// exceed Timeout: a node floods a destination at most once per Timeout,
	// so a remembered ant never shadows the next flood.
	DuplicateTTL time.Duration `yaml:"duplicate_ttl"`
}

// DefaultConfig returns the default discovery configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:            5 * time.Second,
		Retries:            2,
		CheckInterval:      250 * time.Millisecond,
		DuplicateCacheSize: 1024,
		DuplicateTTL:       5 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTimeout, c.Timeout)
	}
	if c.Retries < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidRetries, c.Retries)
	}
	if c.CheckInterval <= 0 {
		return fmt.Errorf("discovery check interval must be positive, got %v", c.CheckInterval)
	}
	if c.DuplicateCacheSize <= 0 {
		return fmt.Errorf("duplicate cache size must be positive, got %d", c.DuplicateCacheSize)
	}
	if c.DuplicateTTL <= 0 {
		return fmt.Errorf("duplicate ttl must be positive, got %v", c.DuplicateTTL)
	}
	if c.DuplicateTTL > c.Timeout {
		return fmt.Errorf("%w: %v > %v", ErrDuplicateTTLTooLong, c.DuplicateTTL, c.Timeout)
	}
	return nil
}

// Discovery describes one in-flight route discovery.
type Discovery struct {
	ID          uuid.UUID
	Destination transport.Address
	Started     time.Time
	Deadline    time.Time
	Attempts    int
}

// Tracker records in-flight discoveries, at most one per destination.
//
// Tracker is not safe for concurrent use; it is owned by the node's event
// loop.
type Tracker struct {
	clock    clock.Clock
	timeout  time.Duration
	retries  int
	inflight map[transport.Address]*Discovery
}

// NewTracker creates a tracker. A nil clock uses the wall clock.
func NewTracker(cfg Config, clk clock.Clock) *Tracker {
	if clk == nil {
		clk = clock.New()
	}

	return &Tracker{
		clock:    clk,
		timeout:  cfg.Timeout,
		retries:  cfg.Retries,
		inflight: make(map[transport.Address]*Discovery),
	}
}

// Start records a new discovery for dest. If one is already in flight it is
// returned unchanged.
func (t *Tracker) Start(dest transport.Address) Discovery {
	if d, ok := t.inflight[dest]; ok {
		return *d
	}

	now := t.clock.Now()
	d := &Discovery{
		ID:          uuid.New(),
		Destination: dest,
		Started:     now,
		Deadline:    now.Add(t.timeout),
		Attempts:    1,
	}
	t.inflight[dest] = d

	logrus.WithFields(logrus.Fields{
		"function":    "Tracker.Start",
		"discovery":   d.ID.String(),
		"destination": dest.String(),
		"deadline":    d.Deadline,
	}).Info("Route discovery started")

	return *d
}

// InProgress reports whether a discovery for dest is in flight.
func (t *Tracker) InProgress(dest transport.Address) bool {
	_, ok := t.inflight[dest]
	return ok
}

// Get returns the in-flight discovery for dest.
func (t *Tracker) Get(dest transport.Address) (Discovery, bool) {
	d, ok := t.inflight[dest]
	if !ok {
		return Discovery{}, false
	}
	return *d, true
}

// Resolve ends the discovery for dest successfully.
func (t *Tracker) Resolve(dest transport.Address) (Discovery, bool) {
	d, ok := t.inflight[dest]
	if !ok {
		return Discovery{}, false
	}
	delete(t.inflight, dest)

	logrus.WithFields(logrus.Fields{
		"function":    "Tracker.Resolve",
		"discovery":   d.ID.String(),
		"destination": dest.String(),
		"attempts":    d.Attempts,
		"duration":    t.clock.Since(d.Started).String(),
	}).Info("Route discovery resolved")

	return *d, true
}

// Expired returns the discoveries whose deadline has passed, ordered by
// destination address.
func (t *Tracker) Expired() []Discovery {
	now := t.clock.Now()

	var expired []Discovery
	for _, d := range t.inflight {
		if !now.Before(d.Deadline) {
			expired = append(expired, *d)
		}
	}

	sort.Slice(expired, func(i, j int) bool {
		return bytes.Compare(expired[i].Destination[:], expired[j].Destination[:]) < 0
	})
	return expired
}

// Retry extends the discovery for dest by another attempt and deadline if
// retries remain. Otherwise the discovery is removed and Retry returns false.
func (t *Tracker) Retry(dest transport.Address) (Discovery, bool) {
	d, ok := t.inflight[dest]
	if !ok {
		return Discovery{}, false
	}

	if d.Attempts > t.retries {
		delete(t.inflight, dest)

		logrus.WithFields(logrus.Fields{
			"function":    "Tracker.Retry",
			"discovery":   d.ID.String(),
			"destination": dest.String(),
			"attempts":    d.Attempts,
		}).Warn("Route discovery failed")

		return *d, false
	}

	d.Attempts++
	d.Deadline = t.clock.Now().Add(t.timeout)

	logrus.WithFields(logrus.Fields{
		"function":    "Tracker.Retry",
		"discovery":   d.ID.String(),
		"destination": dest.String(),
		"attempt":     d.Attempts,
	}).Info("Retrying route discovery")

	return *d, true
}

// Len returns the number of in-flight discoveries.
func (t *Tracker) Len() int {
	return len(t.inflight)
}

// Clear forgets every in-flight discovery.
func (t *Tracker) Clear() {
	for dest := range t.inflight {
		delete(t.inflight, dest)
	}
}
