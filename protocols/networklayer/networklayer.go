// Package networklayer provides an "all-seeing eye" network layer. It routes
// with the forwarding table of the whole topology instead of running a
// routing protocol.
package networklayer

import (
	"github.com/sarchlab/ahc/sim"
	"github.com/sarchlab/ahc/topology"
)

// PacketType is the message type of network layer packets.
const PacketType sim.MessageType = "NETMSG"

// A Router finds the next hop towards a destination.
type Router interface {
	GetNextHop(from, to sim.NodeID) sim.NodeID
}

// Comp is the network layer of a node. Messages from the top must be
// sim.Message values whose header names the destination.
type Comp struct {
	*sim.ComponentBase

	id     sim.NodeID
	router Router
}

// NodeID returns the node the layer belongs to.
func (c *Comp) NodeID() sim.NodeID {
	return c.id
}

// Handle dispatches the events of the network layer.
func (c *Comp) Handle(e sim.Event) error {
	switch e.Kind {
	case sim.KindInit:
		return nil
	case sim.KindMsgFromTop:
		c.send(e)
	case sim.KindMsgFromBottom:
		c.receive(e)
	default:
		return sim.UnhandledEvent(e.Kind)
	}

	return nil
}

func (c *Comp) send(e sim.Event) {
	upper, ok := e.Message()
	if !ok {
		c.Report(sim.LevelWarn, sim.CodeFrameDropped, nil,
			"cannot route payload of type %T", e.Payload)
		return
	}

	dst := upper.Header.To
	if dst == c.id {
		c.SendUp(c.NewEvent(sim.KindMsgFromBottom, upper))
		return
	}

	c.forward(sim.Message{
		Header: sim.MessageHeader{
			Type:       PacketType,
			From:       c.id,
			To:         dst,
			SequenceID: upper.Header.SequenceID,
		},
		Payload: upper,
	})
}

func (c *Comp) receive(e sim.Event) {
	packet, ok := e.Message()
	if !ok || packet.Header.Type != PacketType {
		c.Report(sim.LevelDebug, sim.CodeFrameDropped, nil,
			"dropped a message that is not a packet")
		return
	}

	if packet.Header.To == c.id ||
		packet.Header.To == sim.NetworkLayerBroadcast {
		c.SendUp(c.NewEvent(sim.KindMsgFromBottom, packet.Payload).
			WithChannel(e.FromChannel))
		return
	}

	c.forward(packet)
}

// forward sends the packet towards its destination, or drops it if there is
// no path.
func (c *Comp) forward(packet sim.Message) {
	next := c.router.GetNextHop(c.id, packet.Header.To)
	if next == topology.Unreachable || next == topology.Self {
		c.Report(sim.LevelWarn, sim.CodeNoForwardingPath, topology.ErrUnreachable,
			"node %d has no path to %s", c.id, packet.Header.To)
		return
	}

	packet.Header.NextHop = next
	c.SendDown(c.NewEvent(sim.KindMsgFromTop, packet))
}

// Builder can build network layers.
type Builder struct {
	registry *sim.Registry
	router   Router
	name     string
}

// MakeBuilder creates a builder that names layers NetworkLayer[i].
func MakeBuilder() Builder {
	return Builder{name: "NetworkLayer"}
}

// WithRegistry sets the registry the layer is registered in.
func (b Builder) WithRegistry(r *sim.Registry) Builder {
	b.registry = r
	return b
}

// WithRouter sets where next hops are looked up, usually the topology.
func (b Builder) WithRouter(r Router) Builder {
	b.router = r
	return b
}

// WithName sets the name of the layers.
func (b Builder) WithName(name string) Builder {
	b.name = name
	return b
}

// Build creates the network layer of a node.
func (b Builder) Build(id sim.NodeID) (*Comp, error) {
	if b.router == nil {
		return nil, sim.NewConfigurationError(b.name, "router is not given")
	}

	c := &Comp{id: id, router: b.router}

	base, err := sim.MakeBuilder().
		WithRegistry(b.registry).
		Build(b.name, int(id), c)
	if err != nil {
		return nil, err
	}

	c.ComponentBase = base

	return c, nil
}

// LayerFactory returns a function that builds the network layer of any node.
func (b Builder) LayerFactory() func(
	r *sim.Registry,
	id sim.NodeID,
) (sim.Component, error) {
	return func(r *sim.Registry, id sim.NodeID) (sim.Component, error) {
		c, err := b.WithRegistry(r).Build(id)
		if err != nil {
			return nil, err
		}

		return c, nil
	}
}
