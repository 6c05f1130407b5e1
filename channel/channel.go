// Package channel provides components that model communication links.
//
// A channel is a component with a three-stage pipeline. Ingress wraps every
// message from the top into a process event. The process stage applies the
// failure model of the channel. The delivery stage fans the message out to
// every endpoint except its sender. Each stage owns a mailbox served by a
// single worker, so the relative order of the messages that survive is
// preserved from end to end.
package channel

import (
	"math/rand"
	"sync"

	"go.uber.org/atomic"

	"github.com/sarchlab/ahc/sim"
	"github.com/sarchlab/ahc/sim/queueing"
)

// Variant selects the endpoint limit and the failure model of a channel.
type Variant int

// The channel variants.
const (
	P2PPerfect Variant = iota
	P2PFairLoss
	BroadcastPerfect
)

// String returns the name of the variant.
func (v Variant) String() string {
	switch v {
	case P2PPerfect:
		return "P2PPerfect"
	case P2PFairLoss:
		return "P2PFairLoss"
	case BroadcastPerfect:
		return "BroadcastPerfect"
	default:
		return "Unknown"
	}
}

func (v Variant) endpointLimit() int {
	switch v {
	case P2PPerfect, P2PFairLoss:
		return 2
	default:
		return 0
	}
}

// A Channel delivers the messages sent down to it to its endpoints.
// Endpoints are the components connected upwards.
type Channel struct {
	*sim.ComponentBase

	id      sim.ChannelID
	variant Variant

	connectLock  sync.Mutex
	processQueue *queueing.Mailbox[sim.Event]
	outputQueue  *queueing.Mailbox[sim.Event]

	lossProbability   *atomic.Float64
	averageDuplicates *atomic.Float64

	randLock sync.Mutex
	rand     *rand.Rand
}

// ID returns the identifier that tags every delivery from this channel.
func (c *Channel) ID() sim.ChannelID {
	return c.id
}

// Variant returns the variant of the channel.
func (c *Channel) Variant() Variant {
	return c.variant
}

// Endpoints returns the components attached to the channel, in the order
// they were attached.
func (c *Channel) Endpoints() []sim.Key {
	return c.Connectors(sim.Up)
}

// Connect attaches an endpoint when the direction is Up. Point-to-point
// channels accept at most two endpoints.
func (c *Channel) Connect(dir sim.Direction, peer sim.Key) error {
	if dir != sim.Up {
		return c.ComponentBase.Connect(dir, peer)
	}

	c.connectLock.Lock()
	defer c.connectLock.Unlock()

	limit := c.variant.endpointLimit()
	if limit > 0 && len(c.Endpoints()) >= limit {
		err := sim.NewConfigurationError(c.Name(),
			"%s channel cannot have more than %d endpoints, refusing %s",
			c.variant, limit, peer)
		c.Report(sim.LevelError, sim.CodeChannelCapacityExceeded, err,
			"endpoint %s refused", peer)

		return err
	}

	return c.ComponentBase.Connect(dir, peer)
}

// SetPacketLossProbability sets the probability that a fair-loss channel
// drops a message. It is safe to call while the channel is running.
func (c *Channel) SetPacketLossProbability(p float64) {
	c.lossProbability.Store(p)
}

// PacketLossProbability returns the current loss probability.
func (c *Channel) PacketLossProbability() float64 {
	return c.lossProbability.Load()
}

// SetAverageNumberOfDuplicates sets the average number of copies a fair-loss
// channel delivers for every message that is not dropped. Values not above
// one disable duplication. It is safe to call while the channel is running.
func (c *Channel) SetAverageNumberOfDuplicates(d float64) {
	c.averageDuplicates.Store(d)
}

// AverageNumberOfDuplicates returns the current average number of copies.
func (c *Channel) AverageNumberOfDuplicates() float64 {
	return c.averageDuplicates.Load()
}

// Handle dispatches the events of all three stages.
func (c *Channel) Handle(e sim.Event) error {
	switch e.Kind {
	case sim.KindInit:
		return nil
	case sim.KindMsgFromTop:
		c.ingress(e)
	case sim.KindProcessInChannel:
		c.process(e)
	case sim.KindDeliverToComponent:
		c.deliver(e)
	default:
		return sim.UnhandledEvent(e.Kind)
	}

	return nil
}

func (c *Channel) ingress(e sim.Event) {
	c.Enqueue(c.processQueue,
		sim.NewEvent(e.Source, sim.KindProcessInChannel, e.Payload))
}

func (c *Channel) process(e sim.Event) {
	copies := c.copies()
	if copies == 0 {
		c.Report(sim.LevelDebug, sim.CodeFrameDropped, nil,
			"dropped message from %s", e.Source)
		return
	}

	for i := 0; i < copies; i++ {
		c.Enqueue(c.outputQueue,
			sim.NewEvent(e.Source, sim.KindDeliverToComponent, e.Payload))
	}
}

func (c *Channel) deliver(e sim.Event) {
	for _, endpoint := range c.Endpoints() {
		if endpoint == e.Source {
			continue
		}

		out := c.NewEvent(sim.KindMsgFromBottom, e.Payload).WithChannel(c.id)
		if !c.Registry().Deliver(endpoint, out) {
			c.Report(sim.LevelWarn, sim.CodeUnknownComponent, nil,
				"endpoint %s is not registered", endpoint)
		}
	}
}

// copies decides how many times the message is delivered. Zero means the
// message is dropped.
func (c *Channel) copies() int {
	if c.variant != P2PFairLoss {
		return 1
	}

	c.randLock.Lock()
	defer c.randLock.Unlock()

	if c.rand.Float64() < c.lossProbability.Load() {
		return 0
	}

	duplicate := duplicationProbability(c.averageDuplicates.Load())

	n := 1
	for duplicate > 0 && c.rand.Float64() < duplicate {
		n++
	}

	return n
}

// duplicationProbability returns the probability of every extra copy, so
// that the number of copies is geometric with mean d.
func duplicationProbability(d float64) float64 {
	if d <= 1 {
		return 0
	}

	return (d - 1) / d
}
