package failuredetector

import (
	"time"

	"github.com/sarchlab/ahc/sim"
)

// Builder can build failure detectors.
type Builder struct {
	registry  *sim.Registry
	neighbors Neighbors
	period    time.Duration
	timeout   time.Duration
	name      string
}

// MakeBuilder creates a builder that sends a heartbeat every second and
// suspects a neighbor after three seconds of silence.
func MakeBuilder() Builder {
	return Builder{
		period:  time.Second,
		timeout: 3 * time.Second,
		name:    "FailureDetector",
	}
}

// WithRegistry sets the registry the detector is registered in.
func (b Builder) WithRegistry(r *sim.Registry) Builder {
	b.registry = r
	return b
}

// WithNeighbors sets where the detector learns which nodes to monitor,
// usually the topology.
func (b Builder) WithNeighbors(n Neighbors) Builder {
	b.neighbors = n
	return b
}

// WithPeriod sets the time between two heartbeats.
func (b Builder) WithPeriod(d time.Duration) Builder {
	b.period = d
	return b
}

// WithTimeout sets how long a neighbor may stay silent before it is
// suspected.
func (b Builder) WithTimeout(d time.Duration) Builder {
	b.timeout = d
	return b
}

// WithName sets the name of the detectors.
func (b Builder) WithName(name string) Builder {
	b.name = name
	return b
}

// Build creates the failure detector of a node.
func (b Builder) Build(id sim.NodeID) (*Comp, error) {
	if b.neighbors == nil {
		return nil, sim.NewConfigurationError(b.name, "neighbors are not given")
	}

	if b.period <= 0 || b.timeout <= 0 {
		return nil, sim.NewConfigurationError(b.name,
			"period and timeout must be positive, got %v and %v",
			b.period, b.timeout)
	}

	c := &Comp{
		id:        id,
		neighbors: b.neighbors,
		period:    b.period,
		timeout:   b.timeout,
		now:       time.Now,
		lastSeen:  make(map[sim.NodeID]time.Time),
		suspected: make(map[sim.NodeID]bool),
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

// LayerFactory returns a function that builds the failure detector of any
// node.
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
