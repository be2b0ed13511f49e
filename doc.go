// Package ara implements a node of the Ant Routing Algorithm (ARA), a
// bio-inspired multipath routing protocol for mobile ad-hoc networks.
//
// ARA finds routes the way ant colonies find food. When a node has no route
// to a destination it floods a forward ant (FANT). Every node the FANT passes
// records pheromone towards the FANT's source. The destination answers with a
// backward ant (BANT) that records pheromone towards the destination on its
// way back. Data packets then follow the pheromone trails: each hop picks a
// next hop at random with a probability proportional to its pheromone value
// and reinforces the chosen path. Pheromone evaporates over time, so unused
// paths fade and are eventually removed.
//
// # Getting Started
//
// Create a node from a configuration, run its event loop and send data:
//
//	cfg, err := config.Load("node.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	node, err := ara.New(ara.NewOptions(cfg))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer node.Close()
//
//	node.OnReceive(func(source transport.Address, payload []byte) {
//	    fmt.Printf("%s: %s\n", source, payload)
//	})
//	node.OnRouteFailure(func(destination transport.Address) {
//	    fmt.Printf("%s is unreachable\n", destination)
//	})
//
//	go node.Run(ctx)
//
//	outcome, err := node.Send(ctx, destination, []byte("hello"))
//
// # Event Loop
//
// A Node owns a single goroutine, started by Run, that is the only code
// touching the routing table, the packet trap and the discovery tracker.
// Received packets, local sends and routing table snapshots are submitted to
// it over a channel. A ticker driven by the node's clock checks discovery
// deadlines, so a BANT arriving and a discovery timing out are handled one
// after the other and never race.
//
// Callbacks run on the event loop goroutine. They must not block and must
// not call Send or RoutingTable synchronously.
//
// # Transports
//
// By default a node emulates a broadcast radio over UDP with a static list of
// neighbors taken from the configuration (see transport.UDPTransport). Any
// transport.Transport can be supplied through Options instead; the simnet
// package provides an in-memory network for tests.
//
// # Packages
//
//   - routing: the pheromone routing table
//   - evaporation, reinforcement: pheromone decay and reinforcement policies
//   - forwarding: roulette-wheel next hop selection
//   - packettrap: packets waiting for route discovery
//   - discovery: discovery deadlines and duplicate suppression
//   - engine: the forwarding decision pipeline and control packet handling
//   - transport, wire: packets, addresses, UDP transport and wire format
//   - config, metrics: YAML configuration and Prometheus metrics
package ara
