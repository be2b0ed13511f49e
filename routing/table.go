package routing

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ara/evaporation"
	"github.com/opd-ai/ara/limits"
	"github.com/opd-ai/ara/transport"
)

// DefaultMaxEntries is the default number of destinations a table holds.
const DefaultMaxEntries = 256

// DefaultMaxNextHops is the default number of next hops per destination.
const DefaultMaxNextHops = 16

var (
	// ErrTableFull indicates that a new destination would exceed MaxEntries
	ErrTableFull = errors.New("routing table full")

	// ErrTooManyNextHops indicates that a new next hop would exceed MaxNextHops
	ErrTooManyNextHops = errors.New("too many next hops")

	// ErrNoSuchEntry indicates an operation on a destination without an entry
	ErrNoSuchEntry = errors.New("no routing entry for destination")

	// ErrNegativePheromone indicates an attempt to store a pheromone below zero
	ErrNegativePheromone = errors.New("pheromone cannot be negative")
)

// Config holds the routing table limits and evaporation parameters.
type Config struct {
	MaxEntries  int                `yaml:"max_entries"`
	MaxNextHops int                `yaml:"max_next_hops"`
	NextHopTTL  uint8              `yaml:"next_hop_ttl"`
	Evaporation evaporation.Config `yaml:"evaporation"`
}

// DefaultConfig returns sensible defaults for a routing table.
func DefaultConfig() Config {
	return Config{
		MaxEntries:  DefaultMaxEntries,
		MaxNextHops: DefaultMaxNextHops,
		NextHopTTL:  limits.DefaultHopLimit,
		Evaporation: evaporation.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxEntries <= 0 {
		return fmt.Errorf("max entries must be positive, got %d", c.MaxEntries)
	}
	if c.MaxNextHops <= 0 {
		return fmt.Errorf("max next hops must be positive, got %d", c.MaxNextHops)
	}
	return c.Evaporation.Validate()
}

// Table is the ARA routing table.
type Table struct {
	mu       sync.RWMutex
	entries  map[transport.Address]*Entry
	cfg      Config
	policy   evaporation.Policy
	clock    clock.Clock
	started  bool
	lastEvap time.Time
}

// NewTable creates an empty routing table. A nil clock uses the wall clock.
func NewTable(cfg Config, clk clock.Clock) (*Table, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid routing config: %w", err)
	}

	policy, err := evaporation.New(cfg.Evaporation)
	if err != nil {
		return nil, err
	}

	if clk == nil {
		clk = clock.New()
	}

	return &Table{
		entries: make(map[transport.Address]*Entry),
		cfg:     cfg,
		policy:  policy,
		clock:   clk,
	}, nil
}

// AddEntry inserts entry if its destination is not yet present. An existing
// entry is never overwritten; the call is then a logged no-op. Duplicate next
// hops inside entry are dropped, keeping the first.
func (t *Table) AddEntry(entry Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[entry.Destination]; exists {
		logrus.WithFields(logrus.Fields{
			"function":    "Table.AddEntry",
			"destination": entry.Destination.String(),
		}).Debug("Entry already exists, not overwriting")
		return nil
	}

	if len(t.entries) >= t.cfg.MaxEntries {
		return fmt.Errorf("%w: %d destinations", ErrTableFull, len(t.entries))
	}

	stored := &Entry{
		Destination:    entry.Destination,
		LastAccessTime: entry.LastAccessTime,
		NextHops:       make([]NextHop, 0, len(entry.NextHops)),
	}
	if stored.LastAccessTime.IsZero() {
		stored.LastAccessTime = t.clock.Now()
	}

	for _, hop := range entry.NextHops {
		if hop.Pheromone < 0 {
			return fmt.Errorf("%w: next hop %s", ErrNegativePheromone, hop.Address)
		}
		if stored.indexOf(hop.Address) >= 0 {
			logDuplicateNextHop("Table.AddEntry", entry.Destination, hop.Address)
			continue
		}
		if len(stored.NextHops) >= t.cfg.MaxNextHops {
			return fmt.Errorf("%w: limit %d", ErrTooManyNextHops, t.cfg.MaxNextHops)
		}
		stored.NextHops = append(stored.NextHops, hop)
	}

	t.entries[entry.Destination] = stored
	return nil
}

// GetEntry returns a copy of the entry for destination.
func (t *Table) GetEntry(destination transport.Address) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	entry, ok := t.entries[destination]
	if !ok {
		return Entry{}, false
	}
	return entry.clone(), true
}

// EntryExists reports whether destination has an entry.
func (t *Table) EntryExists(destination transport.Address) bool {
	_, ok := t.GetEntry(destination)
	return ok
}

// DelEntry removes the entry for destination together with its next hops.
func (t *Table) DelEntry(destination transport.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[destination]
	if !ok {
		return
	}
	entry.NextHops = nil
	delete(t.entries, destination)
}

// AddNextHop appends hop to the entry for destination. A next hop with the
// same address already present leaves the entry unchanged.
func (t *Table) AddNextHop(destination transport.Address, hop NextHop) error {
	if hop.Pheromone < 0 {
		return fmt.Errorf("%w: next hop %s", ErrNegativePheromone, hop.Address)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[destination]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchEntry, destination)
	}

	if entry.indexOf(hop.Address) >= 0 {
		logDuplicateNextHop("Table.AddNextHop", destination, hop.Address)
		return nil
	}

	if len(entry.NextHops) >= t.cfg.MaxNextHops {
		return fmt.Errorf("%w: limit %d", ErrTooManyNextHops, t.cfg.MaxNextHops)
	}

	entry.NextHops = append(entry.NextHops, hop)
	return nil
}

// DelNextHops removes every next hop of destination, keeping the entry.
func (t *Table) DelNextHops(destination transport.Address) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.entries[destination]; ok {
		entry.NextHops = nil
	}
}

// DelNextHop removes a single next hop of destination. The entry is removed
// as well when no next hop is left. It reports whether the next hop existed.
func (t *Table) DelNextHop(destination, nextHop transport.Address) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[destination]
	if !ok {
		return false
	}

	i := entry.indexOf(nextHop)
	if i < 0 {
		return false
	}

	entry.NextHops = append(entry.NextHops[:i], entry.NextHops[i+1:]...)
	if len(entry.NextHops) == 0 {
		delete(t.entries, destination)
	}
	return true
}

// NextHopCount returns the number of next hops for destination.
func (t *Table) NextHopCount(destination transport.Address) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if entry, ok := t.entries[destination]; ok {
		return len(entry.NextHops)
	}
	return 0
}

// IsDeliverable reports whether destination has an entry with at least one
// next hop.
func (t *Table) IsDeliverable(destination transport.Address) bool {
	return t.NextHopCount(destination) > 0
}

// PheromoneValue returns the pheromone of nextHop towards destination, or 0
// when there is no such next hop.
func (t *Table) PheromoneValue(destination, nextHop transport.Address) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if entry, ok := t.entries[destination]; ok {
		if i := entry.indexOf(nextHop); i >= 0 {
			return entry.NextHops[i].Pheromone
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Table.PheromoneValue",
		"destination": destination.String(),
		"next_hop":    nextHop.String(),
	}).Debug("No pheromone for next hop")
	return 0
}

// Update sets the pheromone of nextHop towards destination, creating the next
// hop and the entry when they do not exist yet.
func (t *Table) Update(destination, nextHop transport.Address, pheromone float64) error {
	if pheromone < 0 {
		return fmt.Errorf("%w: %v", ErrNegativePheromone, pheromone)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()

	entry, ok := t.entries[destination]
	if !ok {
		if len(t.entries) >= t.cfg.MaxEntries {
			return fmt.Errorf("%w: %d destinations", ErrTableFull, len(t.entries))
		}
		t.entries[destination] = &Entry{
			Destination:    destination,
			LastAccessTime: now,
			NextHops:       []NextHop{t.newNextHop(nextHop, pheromone)},
		}
		return nil
	}

	if i := entry.indexOf(nextHop); i >= 0 {
		entry.NextHops[i].Pheromone = pheromone
		entry.LastAccessTime = now
		return nil
	}

	if len(entry.NextHops) >= t.cfg.MaxNextHops {
		return fmt.Errorf("%w: limit %d", ErrTooManyNextHops, t.cfg.MaxNextHops)
	}

	entry.NextHops = append(entry.NextHops, t.newNextHop(nextHop, pheromone))
	entry.LastAccessTime = now
	return nil
}

// Size returns the number of destinations in the table.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.entries)
}

// TriggerEvaporation evaporates every pheromone value if at least one
// evaporation interval has passed since the last evaporation. The first call
// only records the current time. It reports whether evaporation ran.
func (t *Table) TriggerEvaporation() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if !t.started {
		t.started = true
		t.lastEvap = now
		return false
	}

	elapsed := now.Sub(t.lastEvap)
	if elapsed < t.cfg.Evaporation.Interval {
		return false
	}

	removedHops, removedEntries := 0, 0
	for destination, entry := range t.entries {
		kept := entry.NextHops[:0]
		for _, hop := range entry.NextHops {
			hop.Pheromone = t.policy.Evaporate(hop.Pheromone, elapsed)
			if hop.Pheromone <= 0 {
				removedHops++
				continue
			}
			kept = append(kept, hop)
		}
		entry.NextHops = kept

		if len(entry.NextHops) == 0 {
			delete(t.entries, destination)
			removedEntries++
		}
	}
	t.lastEvap = now

	logrus.WithFields(logrus.Fields{
		"function":        "Table.TriggerEvaporation",
		"elapsed":         elapsed.String(),
		"removed_hops":    removedHops,
		"removed_entries": removedEntries,
		"destinations":    len(t.entries),
	}).Debug("Evaporated pheromone")

	return true
}

// Clear removes every entry.
func (t *Table) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for destination, entry := range t.entries {
		entry.NextHops = nil
		delete(t.entries, destination)
	}
}

// Snapshot returns a copy of every entry ordered by destination address.
func (t *Table) Snapshot() []Entry {
	t.mu.RLock()
	result := make([]Entry, 0, len(t.entries))
	for _, entry := range t.entries {
		result = append(result, entry.clone())
	}
	t.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return bytes.Compare(result[i].Destination[:], result[j].Destination[:]) < 0
	})
	return result
}

func (t *Table) newNextHop(addr transport.Address, pheromone float64) NextHop {
	return NextHop{
		Address:   addr,
		Pheromone: pheromone,
		Credit:    1,
		TTL:       t.cfg.NextHopTTL,
	}
}

func logDuplicateNextHop(function string, destination, nextHop transport.Address) {
	logrus.WithFields(logrus.Fields{
		"function":    function,
		"destination": destination.String(),
		"next_hop":    nextHop.String(),
	}).Debug("Duplicate next hop, entry unchanged")
}
