// Package routing implements the ARA pheromone routing table.
//
// The table maps a destination address to an Entry, and every entry owns an
// ordered list of next hops, each carrying a pheromone value. A destination
// is deliverable when its entry has at least one next hop.
//
// Pheromone evaporates lazily: the engine calls TriggerEvaporation for every
// packet passing through its SendPacket pipeline, and the table applies the
// configured evaporation policy only when at least one evaporation interval
// has elapsed since it last ran. Next hops
// decayed to zero are removed, and so are entries left without next hops.
// No background timer touches the table.
//
// Example:
//
//	table, err := routing.NewTable(routing.DefaultConfig(), clock.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// deposit pheromone learned from a backward ant
//	table.Update(destination, neighbor, 1.0)
//
//	if table.IsDeliverable(destination) {
//	    entry, _ := table.GetEntry(destination)
//	    ...
//	}
//
// The Table is safe for concurrent use, but the ARA node mutates it from a
// single goroutine; the lock only protects read-only snapshots taken from
// other goroutines.
package routing
