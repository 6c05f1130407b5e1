package topology

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/sarchlab/ahc/sim"
)

// A NodeFactory creates the component that stands for a graph node. The
// component must be registered in the given registry.
type NodeFactory func(r *sim.Registry, id sim.NodeID) (sim.Component, error)

// A ChannelFactory creates the component that serves the link between two
// nodes. The component must be registered in the given registry.
type ChannelFactory func(
	r *sim.Registry,
	id sim.ChannelID,
	from, to sim.NodeID,
) (sim.Component, error)

// EdgeID returns the identifier of the link from one node to another.
func EdgeID(from, to sim.NodeID) sim.ChannelID {
	return sim.ChannelID(fmt.Sprintf("%d-%d", from, to))
}

// A link is what a graph edge becomes when the topology is constructed. For
// an undirected edge, From is the smaller id and both ends may send.
type link struct {
	id            sim.ChannelID
	from          sim.NodeID
	to            sim.NodeID
	bidirectional bool
}

// Option configures a Topology.
type Option func(t *Topology)

// WithChannelIDs replaces EdgeID as the way links are named.
func WithChannelIDs(f func(from, to sim.NodeID) sim.ChannelID) Option {
	return func(t *Topology) {
		t.channelID = f
	}
}

// A Topology owns the node and channel components built from a graph and
// keeps a forwarding table for it. It is safe for concurrent use.
type Topology struct {
	registry  *sim.Registry
	channelID func(from, to sim.NodeID) sim.ChannelID

	lock           sync.RWMutex
	graph          *Graph
	nodes          map[sim.NodeID]sim.Component
	links          map[sim.ChannelID]link
	channels       map[sim.ChannelID]sim.Component
	channelFactory ChannelFactory
	forwarding     ForwardingTable
}

// New creates an empty topology whose components live in the registry.
func New(registry *sim.Registry, opts ...Option) *Topology {
	t := &Topology{
		registry:   registry,
		channelID:  EdgeID,
		nodes:      make(map[sim.NodeID]sim.Component),
		links:      make(map[sim.ChannelID]link),
		channels:   make(map[sim.ChannelID]sim.Component),
		forwarding: NewForwardingTable(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Registry returns the registry of the topology.
func (t *Topology) Registry() *sim.Registry {
	return t.registry
}

// ConstructFromGraph creates one component per node and one channel per
// edge, wires them, and computes the forwarding table. Every node connects
// down to the channels it sends on, and every channel connects up to both
// ends of its edge. If the channel factory is nil, the nodes of an edge are
// wired directly as peers instead.
func (t *Topology) ConstructFromGraph(
	g *Graph,
	nodeFactory NodeFactory,
	channelFactory ChannelFactory,
) error {
	if nodeFactory == nil {
		return sim.NewConfigurationError("", "node factory is not given")
	}

	if err := g.Validate(); err != nil {
		return err
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if t.graph != nil {
		return sim.NewConfigurationError("",
			"topology has already been constructed")
	}

	var result *multierror.Error

	for _, id := range g.Nodes() {
		comp, err := nodeFactory(t.registry, id)
		if err != nil {
			result = multierror.Append(result,
				fmt.Errorf("creating node %d: %w", id, err))
			continue
		}

		if comp == nil {
			result = multierror.Append(result, sim.NewConfigurationError("",
				"node factory returned no component for node %d", id))
			continue
		}

		t.nodes[id] = comp
	}

	if err := result.ErrorOrNil(); err != nil {
		return err
	}

	t.graph = g.clone()
	t.channelFactory = channelFactory

	for _, l := range t.linksOf(t.graph) {
		if err := t.wire(l); err != nil {
			result = multierror.Append(result, err)
		}
	}

	t.forwarding = computeForwardingTable(t.graph)

	return result.ErrorOrNil()
}

// UpdateGraphEdges replaces the edges of the topology with those of the new
// graph. Links that disappear are unwired and their channels are stopped and
// unregistered. New links are wired, and their channels are started if the
// registry is running. The forwarding table is recomputed.
func (t *Topology) UpdateGraphEdges(g *Graph) error {
	if err := g.Validate(); err != nil {
		return err
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	if t.graph == nil {
		return sim.NewConfigurationError("",
			"topology has not been constructed")
	}

	if g.Directed() != t.graph.Directed() {
		return sim.NewConfigurationError("",
			"cannot change whether the graph is directed")
	}

	var result *multierror.Error

	for _, id := range g.Nodes() {
		if _, found := t.nodes[id]; !found {
			result = multierror.Append(result, sim.NewConfigurationError("",
				"node %d is not part of the topology", id))
		}
	}

	if err := result.ErrorOrNil(); err != nil {
		return err
	}

	wanted := make(map[sim.ChannelID]link)
	for _, l := range t.linksOf(g) {
		wanted[l.id] = l
	}

	for _, id := range sortedChannelIDs(t.links) {
		if _, keep := wanted[id]; !keep {
			t.unwire(t.links[id])
		}
	}

	var started []sim.Component

	for _, id := range sortedChannelIDs(wanted) {
		if _, exists := t.links[id]; exists {
			continue
		}

		if err := t.wire(wanted[id]); err != nil {
			result = multierror.Append(result, err)
			continue
		}

		if ch, found := t.channels[id]; found {
			started = append(started, ch)
		}
	}

	next := NewGraph(g.Directed())
	for id := range t.nodes {
		next.AddNode(id)
	}

	for _, e := range g.Edges() {
		next.AddEdge(e.From, e.To)
	}

	t.graph = next
	t.forwarding = computeForwardingTable(next)

	if ctx := t.registry.Context(); ctx != nil {
		for _, ch := range started {
			ch.Start(ctx)
		}
	}

	return result.ErrorOrNil()
}

func (t *Topology) linksOf(g *Graph) []link {
	var links []link

	seen := make(map[sim.ChannelID]bool)

	for _, e := range g.Edges() {
		e = g.normalize(e)

		l := link{
			id:            t.channelID(e.From, e.To),
			from:          e.From,
			to:            e.To,
			bidirectional: !g.Directed(),
		}

		if seen[l.id] {
			continue
		}

		seen[l.id] = true
		links = append(links, l)
	}

	return links
}

func (t *Topology) wire(l link) error {
	from := t.nodes[l.from]
	to := t.nodes[l.to]

	if t.channelFactory == nil {
		t.links[l.id] = l

		if err := from.Connect(sim.Peer, to.Key()); err != nil {
			return err
		}

		if l.bidirectional {
			return to.Connect(sim.Peer, from.Key())
		}

		return nil
	}

	ch, err := t.channelFactory(t.registry, l.id, l.from, l.to)
	if err != nil {
		return fmt.Errorf("creating channel %s: %w", l.id, err)
	}

	t.links[l.id] = l
	t.channels[l.id] = ch

	var result *multierror.Error

	for _, end := range []sim.Component{from, to} {
		if err := ch.Connect(sim.Up, end.Key()); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if err := from.Connect(sim.Down, ch.Key()); err != nil {
		result = multierror.Append(result, err)
	}

	if l.bidirectional {
		if err := to.Connect(sim.Down, ch.Key()); err != nil {
			result = multierror.Append(result, err)
		}
	}

	return result.ErrorOrNil()
}

func (t *Topology) unwire(l link) {
	from := t.nodes[l.from]
	to := t.nodes[l.to]

	delete(t.links, l.id)

	ch, found := t.channels[l.id]
	if !found {
		from.Disconnect(sim.Peer, to.Key())

		if l.bidirectional {
			to.Disconnect(sim.Peer, from.Key())
		}

		return
	}

	delete(t.channels, l.id)

	from.Disconnect(sim.Down, ch.Key())
	if l.bidirectional {
		to.Disconnect(sim.Down, ch.Key())
	}

	t.registry.Unregister(ch.Key())
}

// Start starts every component of the registry. Every component handles its
// INIT event exactly once, before any other event.
func (t *Topology) Start(ctx context.Context) {
	t.registry.Start(ctx)
}

// GetNextHop returns the next hop on a shortest path from one node to
// another. It returns Self if the nodes are the same and Unreachable if no
// path exists.
func (t *Topology) GetNextHop(from, to sim.NodeID) sim.NodeID {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return t.forwarding.FindNextHop(from, to)
}

// ForwardingTable returns the current forwarding table. The table must not
// be modified.
func (t *Topology) ForwardingTable() ForwardingTable {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return t.forwarding
}

// GetNeighbors returns the nodes a node can send to over a single link. In a
// directed graph, these are the successors.
func (t *Topology) GetNeighbors(id sim.NodeID) []sim.NodeID {
	return t.GetSuccessors(id)
}

// GetSuccessors returns the nodes at the end of the node's outgoing edges.
func (t *Topology) GetSuccessors(id sim.NodeID) []sim.NodeID {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if t.graph == nil {
		return nil
	}

	return t.graph.Successors(id)
}

// GetPredecessors returns the nodes at the start of the node's incoming
// edges.
func (t *Topology) GetPredecessors(id sim.NodeID) []sim.NodeID {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if t.graph == nil {
		return nil
	}

	return t.graph.Predecessors(id)
}

// ChannelBetween returns the id of the link that carries messages from one
// node to another.
func (t *Topology) ChannelBetween(from, to sim.NodeID) (sim.ChannelID, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if t.graph == nil {
		return "", false
	}

	e := t.graph.normalize(Edge{From: from, To: to})
	id := t.channelID(e.From, e.To)

	_, found := t.links[id]

	return id, found
}

// IncomingChannels returns the ids of the links a node receives on, ordered
// by the id of the sending node.
func (t *Topology) IncomingChannels(id sim.NodeID) []sim.ChannelID {
	var ids []sim.ChannelID

	for _, p := range t.GetPredecessors(id) {
		if ch, found := t.ChannelBetween(p, id); found {
			ids = append(ids, ch)
		}
	}

	return ids
}

// OutgoingChannels returns the ids of the links a node sends on, ordered by
// the id of the receiving node.
func (t *Topology) OutgoingChannels(id sim.NodeID) []sim.ChannelID {
	var ids []sim.ChannelID

	for _, s := range t.GetSuccessors(id) {
		if ch, found := t.ChannelBetween(id, s); found {
			ids = append(ids, ch)
		}
	}

	return ids
}

// Node returns the component of a node.
func (t *Topology) Node(id sim.NodeID) (sim.Component, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	comp, found := t.nodes[id]

	return comp, found
}

// Nodes returns the ids of all nodes, sorted.
func (t *Topology) Nodes() []sim.NodeID {
	t.lock.RLock()
	defer t.lock.RUnlock()

	ids := make([]sim.NodeID, 0, len(t.nodes))
	for id := range t.nodes {
		ids = append(ids, id)
	}

	sortNodes(ids)

	return ids
}

// Channel returns the channel component of a link.
func (t *Topology) Channel(id sim.ChannelID) (sim.Component, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()

	ch, found := t.channels[id]

	return ch, found
}

// Channels returns the ids of all channel components, sorted.
func (t *Topology) Channels() []sim.ChannelID {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return sortedChannelIDs(t.channels)
}

func sortedChannelIDs[V any](m map[sim.ChannelID]V) []sim.ChannelID {
	ids := make([]sim.ChannelID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}
