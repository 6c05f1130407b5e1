// Package failuredetector provides a heartbeat failure detector. Every node
// periodically tells its neighbors that it is alive and suspects the
// neighbors it has not heard from for too long.
package failuredetector

import (
	"sync"
	"time"

	"github.com/sarchlab/ahc/sim"
	"github.com/sarchlab/ahc/sim/hooking"
)

// KindTxAlive is the self-addressed timer event that sends a heartbeat.
var KindTxAlive = sim.RegisterEventKind("TxAliveMessage")

// AliveType is the message type of heartbeats.
const AliveType sim.MessageType = "IAMALIVE"

// HookPosSuspected marks that a node starts suspecting a neighbor. The Item
// of the hook context is the NodeID of the neighbor.
var HookPosSuspected = &hooking.HookPos{Name: "Neighbor Suspected"}

// HookPosRestored marks that a suspected neighbor has been heard from again.
// The Item of the hook context is the NodeID of the neighbor.
var HookPosRestored = &hooking.HookPos{Name: "Neighbor Restored"}

// Neighbors tells a node which nodes to monitor.
type Neighbors interface {
	GetNeighbors(id sim.NodeID) []sim.NodeID
}

// Comp is the failure detector of a node.
type Comp struct {
	*sim.ComponentBase

	id        sim.NodeID
	neighbors Neighbors
	period    time.Duration
	timeout   time.Duration
	now       func() time.Time

	lock      sync.Mutex
	seq       int
	lastSeen  map[sim.NodeID]time.Time
	suspected map[sim.NodeID]bool
}

// NodeID returns the node the detector belongs to.
func (c *Comp) NodeID() sim.NodeID {
	return c.id
}

// Suspected returns the neighbors currently suspected, sorted by id.
func (c *Comp) Suspected() []sim.NodeID {
	c.lock.Lock()
	defer c.lock.Unlock()

	var ids []sim.NodeID

	for _, n := range c.neighbors.GetNeighbors(c.id) {
		if c.suspected[n] {
			ids = append(ids, n)
		}
	}

	return ids
}

// IsSuspected tells if a neighbor is currently suspected.
func (c *Comp) IsSuspected(id sim.NodeID) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.suspected[id]
}

// Handle dispatches the events of the failure detector.
func (c *Comp) Handle(e sim.Event) error {
	switch e.Kind {
	case sim.KindInit:
		c.init()
	case KindTxAlive:
		c.tick()
	case sim.KindMsgFromBottom:
		c.receive(e)
	default:
		return sim.UnhandledEvent(e.Kind)
	}

	return nil
}

func (c *Comp) init() {
	now := c.now()

	c.lock.Lock()
	for _, n := range c.neighbors.GetNeighbors(c.id) {
		c.lastSeen[n] = now
	}
	c.lock.Unlock()

	c.TriggerEvent(c.NewEvent(KindTxAlive, nil))
}

func (c *Comp) tick() {
	c.lock.Lock()
	c.seq++
	heartbeat := sim.Message{
		Header: sim.MessageHeader{
			Type:       AliveType,
			From:       c.id,
			To:         sim.LinkLayerBroadcast,
			NextHop:    sim.LinkLayerBroadcast,
			SequenceID: c.seq,
		},
		Payload: c.id,
	}
	c.lock.Unlock()

	c.SendDown(c.NewEvent(sim.KindMsgFromTop, heartbeat))

	for _, n := range c.newlySuspected() {
		c.Report(sim.LevelWarn, sim.CodeNeighborSuspected, nil,
			"node %d suspects node %d", c.id, n)
		c.invoke(HookPosSuspected, n)
	}

	c.ScheduleAfter(c.period, c.NewEvent(KindTxAlive, nil))
}

func (c *Comp) newlySuspected() []sim.NodeID {
	now := c.now()

	c.lock.Lock()
	defer c.lock.Unlock()

	var ids []sim.NodeID

	for _, n := range c.neighbors.GetNeighbors(c.id) {
		last, found := c.lastSeen[n]
		if !found {
			last = now
			c.lastSeen[n] = now
		}

		if !c.suspected[n] && now.Sub(last) > c.timeout {
			c.suspected[n] = true
			ids = append(ids, n)
		}
	}

	return ids
}

func (c *Comp) receive(e sim.Event) {
	msg, ok := e.Message()
	if !ok || msg.Header.Type != AliveType {
		c.SendUp(c.NewEvent(sim.KindMsgFromBottom, e.Payload).
			WithChannel(e.FromChannel))
		return
	}

	from := msg.Header.From

	c.lock.Lock()
	c.lastSeen[from] = c.now()
	restored := c.suspected[from]
	delete(c.suspected, from)
	c.lock.Unlock()

	if restored {
		c.invoke(HookPosRestored, from)
	}
}

func (c *Comp) invoke(pos *hooking.HookPos, neighbor sim.NodeID) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   neighbor,
	})
}
