// Package discovery tracks route discoveries started by this node and
// suppresses duplicate control packets.
//
// A discovery begins when a locally originated packet has no route. The node
// floods a forward ant (FANT) and waits for the matching backward ant (BANT).
// The Tracker records one in-flight discovery per destination with a deadline
// so that the node's event loop can retry or give up without blocking:
//
//	tracker := discovery.NewTracker(discovery.DefaultConfig(), clk)
//	d := tracker.Start(dest)
//	...
//	for _, d := range tracker.Expired() {
//		if _, ok := tracker.Retry(d.Destination); !ok {
//			// discovery failed
//		}
//	}
//
// FANTs are flooded, so every node sees the same ant over several paths. The
// DuplicateFilter remembers (source, sequence, type) triples for a bounded
// time and reports repeats, which keeps floods from circulating on cyclic
// topologies.
package discovery
