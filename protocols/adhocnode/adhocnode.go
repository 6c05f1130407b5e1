// Package adhocnode provides a node that hosts a stack of protocol layers and
// bridges the lowest layer to the channels of a topology.
package adhocnode

import (
	"github.com/hashicorp/go-multierror"

	"github.com/sarchlab/ahc/sim"
)

// A LayerFactory creates one protocol layer of a node. The layer must be
// registered in the given registry.
type LayerFactory func(r *sim.Registry, id sim.NodeID) (sim.Component, error)

// Comp is the bottom of a protocol stack. It sends everything that comes
// from the top to all of its channels and passes everything that comes from
// the channels up to the lowest layer.
type Comp struct {
	*sim.ComponentBase

	id     sim.NodeID
	layers []sim.Component
}

// NodeID returns the id of the node.
func (c *Comp) NodeID() sim.NodeID {
	return c.id
}

// Layers returns the protocol layers, from the top to the bottom.
func (c *Comp) Layers() []sim.Component {
	return append([]sim.Component(nil), c.layers...)
}

// Top returns the highest protocol layer, or nil if the stack is empty.
func (c *Comp) Top() sim.Component {
	if len(c.layers) == 0 {
		return nil
	}

	return c.layers[0]
}

// Handle dispatches the events of the node.
func (c *Comp) Handle(e sim.Event) error {
	switch e.Kind {
	case sim.KindInit:
		return nil
	case sim.KindMsgFromTop:
		c.SendDown(c.NewEvent(sim.KindMsgFromTop, e.Payload))
	case sim.KindMsgFromBottom:
		c.SendUp(c.NewEvent(sim.KindMsgFromBottom, e.Payload).
			WithChannel(e.FromChannel))
	default:
		return sim.UnhandledEvent(e.Kind)
	}

	return nil
}

// Builder can build ad hoc nodes.
type Builder struct {
	registry *sim.Registry
	layers   []LayerFactory
	name     string
}

// MakeBuilder creates a builder that names nodes Node[i].
func MakeBuilder() Builder {
	return Builder{name: "Node"}
}

// WithRegistry sets the registry the node and its layers are registered in.
func (b Builder) WithRegistry(r *sim.Registry) Builder {
	b.registry = r
	return b
}

// WithLayers sets the protocol stack, from the top to the bottom.
func (b Builder) WithLayers(layers ...LayerFactory) Builder {
	b.layers = append([]LayerFactory(nil), layers...)
	return b
}

// WithName sets the name of the nodes.
func (b Builder) WithName(name string) Builder {
	b.name = name
	return b
}

// Build creates a node and its layers, and connects every layer to the ones
// next to it.
func (b Builder) Build(id sim.NodeID) (*Comp, error) {
	c := &Comp{id: id}

	base, err := sim.MakeBuilder().
		WithRegistry(b.registry).
		Build(b.name, int(id), c)
	if err != nil {
		return nil, err
	}

	c.ComponentBase = base

	var result *multierror.Error

	for _, f := range b.layers {
		layer, err := f(b.registry, id)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}

		c.layers = append(c.layers, layer)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	stack := append(c.Layers(), sim.Component(c))
	for i := 0; i+1 < len(stack); i++ {
		upper, lower := stack[i], stack[i+1]

		if err := upper.Connect(sim.Down, lower.Key()); err != nil {
			result = multierror.Append(result, err)
		}

		if err := lower.Connect(sim.Up, upper.Key()); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}

	return c, nil
}

// NodeFactory returns a function that builds one node per graph node, for
// use with topology construction.
func (b Builder) NodeFactory() func(
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
