package snapshot

import (
	"github.com/sarchlab/ahc/sim"
)

// Builder can build snapshot nodes.
type Builder struct {
	registry *sim.Registry
	edges    Edges
	name     string
}

// MakeBuilder creates a builder that names nodes Node[i].
func MakeBuilder() Builder {
	return Builder{name: "Node"}
}

// WithRegistry sets the registry the node is registered in.
func (b Builder) WithRegistry(r *sim.Registry) Builder {
	b.registry = r
	return b
}

// WithEdges sets where the node learns its incoming channels from, usually
// the topology.
func (b Builder) WithEdges(e Edges) Builder {
	b.edges = e
	return b
}

// WithName sets the name of the nodes.
func (b Builder) WithName(name string) Builder {
	b.name = name
	return b
}

// Build creates the node with the given id.
func (b Builder) Build(id sim.NodeID) (*Comp, error) {
	if b.edges == nil {
		return nil, sim.NewConfigurationError(b.name, "edges are not given")
	}

	c := &Comp{
		id:    id,
		edges: b.edges,
		state: State{
			MarkerReceived: make(map[sim.ChannelID]bool),
			InTransit:      make(map[sim.ChannelID][]sim.Message),
		},
	}

	base, err := sim.MakeBuilder().
		WithRegistry(b.registry).
		Build(b.name, int(id), c)
	if err != nil {
		return nil, err
	}

	c.ComponentBase = base

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
