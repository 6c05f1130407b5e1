// Package broadcasting provides controlled flooding. Every node passes a
// broadcast up once and relays it to its neighbors once, recognizing copies
// by the unique id of the message.
package broadcasting

import (
	"sync"

	"github.com/sarchlab/ahc/sim"
	"github.com/sarchlab/ahc/sim/hooking"
)

// FloodType is the message type of flooded messages.
const FloodType sim.MessageType = "SIMPLEFLOOD"

// HookPosDelivered marks that a broadcast has been passed up at a node. The
// Item of the hook context is the delivered sim.Message.
var HookPosDelivered = &hooking.HookPos{Name: "Broadcast Delivered"}

// Comp floods every payload it receives from the top to the whole network.
type Comp struct {
	*sim.ComponentBase

	id sim.NodeID

	lock sync.Mutex
	seq  int
	seen map[sim.UniqueID]bool
}

// NodeID returns the node the layer belongs to.
func (c *Comp) NodeID() sim.NodeID {
	return c.id
}

// Broadcast floods a payload from this node.
func (c *Comp) Broadcast(payload any) {
	c.TriggerEvent(c.NewEvent(sim.KindMsgFromTop, payload))
}

// Seen tells if the node has handled the broadcast with the given id.
func (c *Comp) Seen(id sim.UniqueID) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.seen[id]
}

// Handle dispatches the events of the flooding layer.
func (c *Comp) Handle(e sim.Event) error {
	switch e.Kind {
	case sim.KindInit:
		return nil
	case sim.KindMsgFromTop:
		c.originate(e.Payload)
	case sim.KindMsgFromBottom:
		c.relay(e)
	default:
		return sim.UnhandledEvent(e.Kind)
	}

	return nil
}

func (c *Comp) originate(payload any) {
	c.lock.Lock()
	c.seq++
	msg := sim.Message{
		Header: sim.MessageHeader{
			Type:       FloodType,
			From:       c.id,
			To:         sim.NetworkLayerBroadcast,
			NextHop:    sim.LinkLayerBroadcast,
			SequenceID: c.seq,
		},
		Payload: payload,
	}
	c.seen[msg.UniqueID()] = true
	c.lock.Unlock()

	c.SendDown(c.NewEvent(sim.KindMsgFromTop, msg))
}

func (c *Comp) relay(e sim.Event) {
	msg, ok := e.Message()
	if !ok || msg.Header.Type != FloodType {
		return
	}

	if msg.Header.To != c.id && msg.Header.To != sim.NetworkLayerBroadcast {
		return
	}

	c.lock.Lock()
	if c.seen[msg.UniqueID()] {
		c.lock.Unlock()
		return
	}

	c.seen[msg.UniqueID()] = true
	c.lock.Unlock()

	if c.NumHooks() > 0 {
		c.InvokeHook(hooking.HookCtx{
			Domain: c,
			Pos:    HookPosDelivered,
			Item:   msg,
		})
	}

	c.SendUp(c.NewEvent(sim.KindMsgFromBottom, msg.Payload).
		WithChannel(e.FromChannel))
	c.SendDown(c.NewEvent(sim.KindMsgFromTop, msg))
}

// Builder can build flooding layers.
type Builder struct {
	registry *sim.Registry
	name     string
}

// MakeBuilder creates a builder that names layers Flooding[i].
func MakeBuilder() Builder {
	return Builder{name: "Flooding"}
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

// Build creates the flooding layer of a node.
func (b Builder) Build(id sim.NodeID) (*Comp, error) {
	c := &Comp{id: id, seen: make(map[sim.UniqueID]bool)}

	base, err := sim.MakeBuilder().
		WithRegistry(b.registry).
		Build(b.name, int(id), c)
	if err != nil {
		return nil, err
	}

	c.ComponentBase = base

	return c, nil
}

// LayerFactory returns a function that builds the flooding layer of any
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
