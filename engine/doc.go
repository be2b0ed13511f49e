// Package engine implements the ARA forwarding decision pipeline.
//
// SendPacket decides the fate of every outbound packet:
//
//  1. Evaporate pheromone if an evaporation interval has elapsed.
//  2. Drop packets whose hop limit is exhausted.
//  3. Trap data packets for destinations with a route discovery in flight.
//  4. Forward packets with a route to a stochastically chosen next hop and
//     reinforce the chosen path.
//  5. Drop control packets that have no route.
//  6. Otherwise trap the packet and flood a forward ant if this node
//     originated it, or report a route failure towards its source.
//
// HandlePacket processes received packets. Forward ants (FANT) leave
// pheromone towards their source and are flooded until they reach their
// destination, which answers with a backward ant (BANT). A BANT leaves
// pheromone towards its source on the way back and, once it reaches the
// node that started the discovery, releases the trapped packets through
// SendPacket. Route failure packets remove the failed next hop.
//
// CheckDiscoveryTimeouts retries or abandons discoveries whose deadline has
// passed. An abandoned discovery reports one route failure per trapped
// packet.
//
// An Engine is not safe for concurrent use. The ara.Node event loop is its
// only caller.
package engine
