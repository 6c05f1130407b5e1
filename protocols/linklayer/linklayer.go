// Package linklayer provides a generic link layer. It frames the messages of
// the layer above for a single next hop, or for every neighbor, and filters
// out frames that are not addressed to the local node.
package linklayer

import (
	"github.com/sarchlab/ahc/sim"
)

// FrameType is the message type of link layer frames.
const FrameType sim.MessageType = "LINKMSG"

// Comp is the link layer of a node.
type Comp struct {
	*sim.ComponentBase

	id sim.NodeID
}

// NodeID returns the node the layer belongs to.
func (c *Comp) NodeID() sim.NodeID {
	return c.id
}

// Handle dispatches the events of the link layer.
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
			"cannot frame payload of type %T", e.Payload)
		return
	}

	dst := upper.Header.NextHop
	if upper.Header.To == sim.NetworkLayerBroadcast {
		dst = sim.LinkLayerBroadcast
	}

	frame := sim.Message{
		Header: sim.MessageHeader{
			Type:       FrameType,
			From:       c.id,
			To:         dst,
			NextHop:    dst,
			SequenceID: upper.Header.SequenceID,
		},
		Payload: upper,
	}

	c.SendDown(c.NewEvent(sim.KindMsgFromTop, frame))
}

func (c *Comp) receive(e sim.Event) {
	frame, ok := e.Message()
	if !ok || frame.Header.Type != FrameType {
		c.Report(sim.LevelDebug, sim.CodeFrameDropped, nil,
			"dropped a message that is not a frame")
		return
	}

	if frame.Header.To != c.id && frame.Header.To != sim.LinkLayerBroadcast {
		c.Report(sim.LevelDebug, sim.CodeFrameDropped, nil,
			"node %d dropped a frame for %s", c.id, frame.Header.To)
		return
	}

	c.SendUp(c.NewEvent(sim.KindMsgFromBottom, frame.Payload).
		WithChannel(e.FromChannel))
}

// Builder can build link layers.
type Builder struct {
	registry *sim.Registry
	name     string
}

// MakeBuilder creates a builder that names layers LinkLayer[i].
func MakeBuilder() Builder {
	return Builder{name: "LinkLayer"}
}

// WithRegistry sets the registry the layer is registered in.
func (b Builder) WithRegistry(r *sim.Registry) Builder {
	b.registry = r
	return b
}

// WithName sets the name of the layers.
func (b Builder) WithName(name string) Builder {
	b.name = name
	return b
}

// Build creates the link layer of a node.
func (b Builder) Build(id sim.NodeID) (*Comp, error) {
	c := &Comp{id: id}

	base, err := sim.MakeBuilder().
		WithRegistry(b.registry).
		Build(b.name, int(id), c)
	if err != nil {
		return nil, err
	}

	c.ComponentBase = base

	return c, nil
}

// LayerFactory returns a function that builds the link layer of any node.
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
