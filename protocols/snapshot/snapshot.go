// Package snapshot implements the Chandy–Lamport global snapshot algorithm.
//
// Every node records its local state either when asked to or when the first
// marker reaches it, and then sends one marker on each of its outgoing
// channels. A node records the basic messages that arrive on an incoming
// channel after its own snapshot and before the marker of that channel. It
// terminates once a marker has arrived on every incoming channel. Channels
// must be FIFO.
package snapshot

import (
	"sync"

	"github.com/sarchlab/ahc/sim"
	"github.com/sarchlab/ahc/sim/hooking"
)

// KindTakeSnapshot asks a node to start a snapshot.
var KindTakeSnapshot = sim.RegisterEventKind("TakeSnapshot")

// MarkerType is the message type of the control messages of the algorithm.
const MarkerType sim.MessageType = "MARKER"

// HookPosSnapshotTaken marks that a node has recorded its local state. The
// Item of the hook context is the NodeID.
var HookPosSnapshotTaken = &hooking.HookPos{Name: "Snapshot Taken"}

// HookPosSnapshotTerminated marks that a node has received a marker on every
// incoming channel. The Item of the hook context is the NodeID and the Detail
// is the final State.
var HookPosSnapshotTerminated = &hooking.HookPos{Name: "Snapshot Terminated"}

// Phase is the progress of the snapshot at a node.
type Phase int

// The phases. A node moves from Idle to Recording to Terminated and never
// back.
const (
	Idle Phase = iota
	Recording
	Terminated
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "Idle"
	case Recording:
		return "Recording"
	case Terminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// State is the snapshot state of a node.
type State struct {
	Phase          Phase
	Recorded       bool
	MarkerReceived map[sim.ChannelID]bool
	BroadcastSeq   int

	// InTransit holds, per incoming channel, the basic messages that were in
	// flight when the snapshot was taken.
	InTransit map[sim.ChannelID][]sim.Message
}

func (s State) clone() State {
	c := s
	c.MarkerReceived = make(map[sim.ChannelID]bool, len(s.MarkerReceived))
	for k, v := range s.MarkerReceived {
		c.MarkerReceived[k] = v
	}

	c.InTransit = make(map[sim.ChannelID][]sim.Message, len(s.InTransit))
	for k, v := range s.InTransit {
		c.InTransit[k] = append([]sim.Message(nil), v...)
	}

	return c
}

// AllMarkersReceived tells if a marker has arrived on every incoming channel.
func (s State) AllMarkersReceived() bool {
	for _, received := range s.MarkerReceived {
		if !received {
			return false
		}
	}

	return true
}

// Edges tells a node which channels it receives on.
type Edges interface {
	IncomingChannels(id sim.NodeID) []sim.ChannelID
}

// Comp is a node running the Chandy–Lamport algorithm. Basic messages pass
// through it: messages from the top are sent down to every outgoing channel
// and messages from the bottom are sent up.
type Comp struct {
	*sim.ComponentBase

	id    sim.NodeID
	edges Edges

	lock  sync.Mutex
	state State
}

// NodeID returns the node the component stands for.
func (c *Comp) NodeID() sim.NodeID {
	return c.id
}

// State returns a copy of the snapshot state.
func (c *Comp) State() State {
	c.lock.Lock()
	defer c.lock.Unlock()

	return c.state.clone()
}

// TakeSnapshot makes this node an initiator.
func (c *Comp) TakeSnapshot() {
	c.TriggerEvent(c.NewEvent(KindTakeSnapshot, nil))
}

// Handle dispatches the events of the node.
func (c *Comp) Handle(e sim.Event) error {
	switch e.Kind {
	case sim.KindInit:
		c.init()
	case KindTakeSnapshot:
		c.takeSnapshot()
	case sim.KindMsgFromBottom:
		c.handleMsgFromBottom(e)
	case sim.KindMsgFromTop:
		c.SendDown(c.NewEvent(sim.KindMsgFromTop, e.Payload))
	default:
		return sim.UnhandledEvent(e.Kind)
	}

	return nil
}

func (c *Comp) init() {
	c.lock.Lock()
	defer c.lock.Unlock()

	for _, ch := range c.edges.IncomingChannels(c.id) {
		if _, found := c.state.MarkerReceived[ch]; !found {
			c.state.MarkerReceived[ch] = false
		}
	}
}

func (c *Comp) handleMsgFromBottom(e sim.Event) {
	msg, ok := e.Message()
	if !ok {
		c.SendUp(c.NewEvent(sim.KindMsgFromBottom, e.Payload).
			WithChannel(e.FromChannel))
		return
	}

	if msg.Header.Type == MarkerType {
		c.handleMarker(e.FromChannel)
		return
	}

	c.lock.Lock()
	received, incoming := c.state.MarkerReceived[e.FromChannel]
	if incoming && !received && c.state.Phase == Recording {
		c.state.InTransit[e.FromChannel] =
			append(c.state.InTransit[e.FromChannel], msg)
	}
	c.lock.Unlock()

	c.SendUp(c.NewEvent(sim.KindMsgFromBottom, msg).WithChannel(e.FromChannel))
}

func (c *Comp) handleMarker(ch sim.ChannelID) {
	c.lock.Lock()
	_, incoming := c.state.MarkerReceived[ch]
	c.lock.Unlock()

	if !incoming {
		c.Report(sim.LevelWarn, sim.CodeUnknownChannel, nil,
			"marker from unknown channel %q", ch)
		return
	}

	c.takeSnapshot()

	c.lock.Lock()
	c.state.MarkerReceived[ch] = true
	c.lock.Unlock()

	c.checkTermination()
}

func (c *Comp) takeSnapshot() {
	c.lock.Lock()
	if c.state.Recorded {
		c.lock.Unlock()
		return
	}

	c.state.Recorded = true
	c.state.Phase = Recording
	c.state.BroadcastSeq++
	seq := c.state.BroadcastSeq
	c.lock.Unlock()

	c.Report(sim.LevelInfo, sim.CodeSnapshotTaken, nil,
		"node %d took its snapshot", c.id)
	c.invoke(HookPosSnapshotTaken, nil)

	marker := sim.Message{
		Header: sim.MessageHeader{
			Type:       MarkerType,
			From:       c.id,
			To:         sim.NetworkLayerBroadcast,
			NextHop:    sim.LinkLayerBroadcast,
			SequenceID: seq,
		},
	}

	for _, out := range c.Connectors(sim.Down) {
		c.SendDownTo(out, c.NewEvent(sim.KindMsgFromTop, marker))
	}

	c.checkTermination()
}

func (c *Comp) checkTermination() {
	c.lock.Lock()
	if c.state.Phase != Recording || !c.state.AllMarkersReceived() {
		c.lock.Unlock()
		return
	}

	c.state.Phase = Terminated
	final := c.state.clone()
	c.lock.Unlock()

	c.Report(sim.LevelInfo, sim.CodeSnapshotTerminated, nil,
		"node %d terminated its snapshot", c.id)
	c.invoke(HookPosSnapshotTerminated, final)
}

func (c *Comp) invoke(pos *hooking.HookPos, detail any) {
	if c.NumHooks() == 0 {
		return
	}

	c.InvokeHook(hooking.HookCtx{
		Domain: c,
		Pos:    pos,
		Item:   c.id,
		Detail: detail,
	})
}
