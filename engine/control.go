package engine

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/ara/transport"
)

// HandlePacket processes a packet received from a neighbor. Ownership of
// packet passes to the engine. Malformed packets are released and reported
// with ErrMalformedControl before they can touch the routing table.
func (e *Engine) HandlePacket(packet *transport.Packet) error {
	if !packet.Type.Valid() {
		packet.Release()
		return fmt.Errorf("%w: type %d", ErrMalformedControl, packet.Type)
	}

	if packet.Sender == e.local {
		packet.Release()
		return nil
	}

	if packet.Type.IsControl() {
		e.metrics.ControlPacket(packet.Type.String())

		if packet.Source == e.local || e.duplicates.Seen(packet) {
			logrus.WithFields(logrus.Fields{
				"function": "Engine.HandlePacket",
				"type":     packet.Type.String(),
				"source":   packet.Source.String(),
				"seq":      packet.Seq,
			}).Debug("Ignoring duplicate control packet")
			packet.Release()
			return nil
		}
	}

	var err error
	switch packet.Type {
	case transport.PacketFANT:
		e.handleFANT(packet)
	case transport.PacketBANT:
		e.handleBANT(packet)
	case transport.PacketRouteFailure:
		err = e.handleRouteFailure(packet)
	default:
		e.handleData(packet)
	}

	e.updateGauges()
	return err
}

// depositPheromone records that source is reachable through sender, keeping
// a stronger existing path intact.
func (e *Engine) depositPheromone(source, sender transport.Address) {
	phi := max(e.table.PheromoneValue(source, sender), e.cfg.InitialPheromone)
	if err := e.table.Update(source, sender, phi); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Engine.depositPheromone",
			"destination": source.String(),
			"next_hop":    sender.String(),
			"error":       err.Error(),
		}).Warn("Failed to deposit pheromone")
	}
}

func (e *Engine) handleFANT(fant *transport.Packet) {
	e.depositPheromone(fant.Source, fant.Sender)

	if fant.Destination == e.local {
		bant := transport.NewBANT(fant, e.seq.Next(), e.cfg.HopLimit)
		e.duplicates.Seen(bant)
		fant.Release()

		logrus.WithFields(logrus.Fields{
			"function": "Engine.handleFANT",
			"source":   bant.Destination.String(),
			"seq":      bant.Seq,
		}).Debug("Answering FANT with BANT")

		e.SendPacket(bant)
		return
	}

	defer fant.Release()

	if fant.HopLimit <= 1 {
		return
	}

	relay := fant.Clone()
	relay.HopLimit--
	relay.Sender = e.local
	if err := e.transport.Broadcast(relay); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":    "Engine.handleFANT",
			"source":      fant.Source.String(),
			"destination": fant.Destination.String(),
			"error":       err.Error(),
		}).Warn("Failed to relay FANT")
	}
}

func (e *Engine) handleBANT(bant *transport.Packet) {
	e.depositPheromone(bant.Source, bant.Sender)

	if bant.Destination != e.local {
		e.relay(bant)
		return
	}
	bant.Release()

	dest := bant.Source
	if d, ok := e.tracker.Resolve(dest); ok {
		e.metrics.Discovery("resolved")
		logrus.WithFields(logrus.Fields{
			"function":    "Engine.handleBANT",
			"discovery":   d.ID.String(),
			"destination": dest.String(),
		}).Info("Route discovered")
	}

	for _, packet := range e.trap.Flush(dest) {
		e.SendPacket(packet)
	}
}

func (e *Engine) handleRouteFailure(failure *transport.Packet) error {
	failed, ok := failure.FailedDestination()
	if !ok {
		failure.Release()
		return fmt.Errorf("%w: route failure without destination", ErrMalformedControl)
	}

	if e.table.DelNextHop(failed, failure.Sender) {
		logrus.WithFields(logrus.Fields{
			"function":    "Engine.handleRouteFailure",
			"destination": failed.String(),
			"next_hop":    failure.Sender.String(),
		}).Info("Removed failed next hop")
	}

	if failure.Destination == e.local {
		failure.Release()
		e.notifyRouteFailure(failed)
		return nil
	}

	e.relay(failure)
	return nil
}

func (e *Engine) handleData(packet *transport.Packet) {
	if packet.Destination == e.local {
		if e.onReceive == nil {
			packet.Release()
			return
		}
		e.onReceive(packet)
		return
	}
	e.relay(packet)
}

// relay forwards a packet originated elsewhere.
func (e *Engine) relay(packet *transport.Packet) {
	if packet.HopLimit > 0 {
		packet.HopLimit--
	}
	e.SendPacket(packet)
}

func (e *Engine) notifyRouteFailure(dest transport.Address) {
	logrus.WithFields(logrus.Fields{
		"function":    "Engine.notifyRouteFailure",
		"destination": dest.String(),
	}).Warn("Destination unreachable")

	if e.onRouteFailure != nil {
		e.onRouteFailure(dest)
	}
}

// CheckDiscoveryTimeouts retries every discovery whose deadline has passed
// and abandons those without retries left. The packets trapped for an
// abandoned discovery are released, each with a route failure reported to
// its source.
func (e *Engine) CheckDiscoveryTimeouts() {
	for _, expired := range e.tracker.Expired() {
		dest := expired.Destination

		if d, ok := e.tracker.Retry(dest); ok {
			e.metrics.Discovery("retried")
			e.floodFANT(dest, d.ID.String())
			continue
		}

		e.metrics.Discovery("failed")

		for _, packet := range e.trap.Fail(dest) {
			if packet.Source == e.local {
				packet.Release()
				e.notifyRouteFailure(dest)
				continue
			}
			e.metrics.PacketOutcome(e.reportRouteFailure(packet).String())
		}
	}

	e.updateGauges()
}
