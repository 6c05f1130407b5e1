package channel

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/atomic"

	"github.com/sarchlab/ahc/sim"
	"github.com/sarchlab/ahc/sim/queueing"
)

// Builder can build channels.
type Builder struct {
	registry          *sim.Registry
	variant           Variant
	id                sim.ChannelID
	lossProbability   float64
	averageDuplicates float64
	seed              int64
	seeded            bool
}

// MakeBuilder creates a builder with default parameters. By default, it
// builds perfect point-to-point channels.
func MakeBuilder() Builder {
	return Builder{variant: P2PPerfect}
}

// WithRegistry sets the registry the channel is registered in.
func (b Builder) WithRegistry(r *sim.Registry) Builder {
	b.registry = r
	return b
}

// WithVariant sets the variant of the channel.
func (b Builder) WithVariant(v Variant) Builder {
	b.variant = v
	return b
}

// WithID sets the identifier that tags deliveries. If not set, the channel
// uses its name.
func (b Builder) WithID(id sim.ChannelID) Builder {
	b.id = id
	return b
}

// WithLossProbability sets the initial loss probability of a fair-loss
// channel.
func (b Builder) WithLossProbability(p float64) Builder {
	b.lossProbability = p
	return b
}

// WithAverageNumberOfDuplicates sets the initial average number of copies of
// a fair-loss channel.
func (b Builder) WithAverageNumberOfDuplicates(d float64) Builder {
	b.averageDuplicates = d
	return b
}

// WithSeed makes the failure model of a fair-loss channel reproducible.
func (b Builder) WithSeed(seed int64) Builder {
	b.seed = seed
	b.seeded = true
	return b
}

// Build creates a channel and registers it.
func (b Builder) Build(name string, instance int) (*Channel, error) {
	if b.lossProbability < 0 || b.lossProbability > 1 {
		return nil, sim.NewConfigurationError(name,
			"loss probability must be within [0, 1], got %g", b.lossProbability)
	}

	if b.averageDuplicates < 0 {
		return nil, sim.NewConfigurationError(name,
			"average number of duplicates must not be negative, got %g",
			b.averageDuplicates)
	}

	seed := b.seed
	if !b.seeded {
		seed = time.Now().UnixNano()
	}

	c := &Channel{
		variant:           b.variant,
		lossProbability:   atomic.NewFloat64(b.lossProbability),
		averageDuplicates: atomic.NewFloat64(b.averageDuplicates),
		rand:              rand.New(rand.NewSource(seed)),
	}

	base, err := sim.MakeBuilder().
		WithRegistry(b.registry).
		Build(name, instance, c)
	if err != nil {
		return nil, err
	}

	c.ComponentBase = base
	c.processQueue = queueing.NewMailbox[sim.Event](c.Name() + ".ProcessQueue")
	c.outputQueue = queueing.NewMailbox[sim.Event](c.Name() + ".OutputQueue")

	c.id = b.id
	if c.id == "" {
		c.id = sim.ChannelID(c.Name())
	}

	c.AddWorker(func(ctx context.Context) { c.Serve(ctx, c.processQueue) })
	c.AddWorker(func(ctx context.Context) { c.Serve(ctx, c.outputQueue) })

	return c, nil
}

// EdgeFactory returns a function that builds one channel per directed edge.
// The channel serving the edge from i to j is named Channel[i][j] and its ID
// is "i-j".
func (b Builder) EdgeFactory() func(
	r *sim.Registry,
	id sim.ChannelID,
	from, to sim.NodeID,
) (sim.Component, error) {
	return func(
		r *sim.Registry,
		id sim.ChannelID,
		from, to sim.NodeID,
	) (sim.Component, error) {
		eb := b.WithRegistry(r).WithID(id)
		if b.seeded {
			eb = eb.WithSeed(b.seed + int64(from)*1_000_003 + int64(to))
		}

		c, err := eb.Build(fmt.Sprintf("Channel[%d]", from), int(to))
		if err != nil {
			return nil, err
		}

		return c, nil
	}
}
