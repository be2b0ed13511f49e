// Package simnet provides an in-memory radio network for deterministic tests
// of ARA nodes.
//
// A Network connects Endpoints with bidirectional links. Each Endpoint
// implements transport.Transport, so it can stand in for a UDPTransport
// anywhere. Transmissions are queued rather than delivered immediately:
// tests either pump the queue with Flush, or call Start to deliver from a
// background goroutine while nodes run their own event loops.
//
//	network := simnet.NewNetwork(wire.Codec{})
//	a := network.Join(addrA)
//	b := network.Join(addrB)
//	network.Link(addrA, addrB)
//
//	b.RegisterHandler(transport.PacketData, handler)
//	_ = a.Send(packet, addrB)
//	network.Flush()
//
// When the network has a codec every packet is encoded on send and decoded
// on delivery, exercising the wire format. Every delivery attempt is recorded
// in the delivery log for later inspection.
package simnet
