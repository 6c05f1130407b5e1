// Package topology builds a network of components from a graph and answers
// forwarding and adjacency queries about it.
package topology

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/sarchlab/ahc/sim"
)

// An Edge connects two nodes. In an undirected graph, the order of From and
// To does not matter.
type Edge struct {
	From sim.NodeID
	To   sim.NodeID
}

// A Graph describes the nodes of a topology and the edges between them.
type Graph struct {
	directed bool
	nodes    map[sim.NodeID]bool
	edges    []Edge
}

// NewGraph creates an empty graph.
func NewGraph(directed bool) *Graph {
	return &Graph{
		directed: directed,
		nodes:    make(map[sim.NodeID]bool),
	}
}

// Directed tells if the edges of the graph have a direction.
func (g *Graph) Directed() bool {
	return g.directed
}

// AddNode adds a node. Adding an existing node has no effect.
func (g *Graph) AddNode(id sim.NodeID) {
	g.nodes[id] = true
}

// AddNodes adds nodes 0 to n-1.
func (g *Graph) AddNodes(n int) {
	for i := 0; i < n; i++ {
		g.AddNode(sim.NodeID(i))
	}
}

// AddEdge adds an edge. The nodes must be added separately; Validate reports
// edges that refer to unknown nodes.
func (g *Graph) AddEdge(from, to sim.NodeID) {
	g.edges = append(g.edges, Edge{From: from, To: to})
}

// HasNode tells if the node is in the graph.
func (g *Graph) HasNode(id sim.NodeID) bool {
	return g.nodes[id]
}

// HasEdge tells if there is an edge from one node to another. In an
// undirected graph, the direction is ignored.
func (g *Graph) HasEdge(from, to sim.NodeID) bool {
	for _, e := range g.edges {
		if e.From == from && e.To == to {
			return true
		}

		if !g.directed && e.From == to && e.To == from {
			return true
		}
	}

	return false
}

// Nodes returns the nodes sorted by id.
func (g *Graph) Nodes() []sim.NodeID {
	nodes := make([]sim.NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		nodes = append(nodes, id)
	}

	sortNodes(nodes)

	return nodes
}

// Edges returns the edges in the order they were added.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, len(g.edges))
	copy(edges, g.edges)

	return edges
}

// Successors returns the nodes reachable over one edge from the node, sorted
// by id. In an undirected graph, these are the neighbors.
func (g *Graph) Successors(id sim.NodeID) []sim.NodeID {
	set := make(map[sim.NodeID]bool)

	for _, e := range g.edges {
		if e.From == id {
			set[e.To] = true
		}

		if !g.directed && e.To == id {
			set[e.From] = true
		}
	}

	return sortedSet(set)
}

// Predecessors returns the nodes that reach the node over one edge, sorted
// by id. In an undirected graph, these are the neighbors.
func (g *Graph) Predecessors(id sim.NodeID) []sim.NodeID {
	if !g.directed {
		return g.Successors(id)
	}

	set := make(map[sim.NodeID]bool)

	for _, e := range g.edges {
		if e.To == id {
			set[e.From] = true
		}
	}

	return sortedSet(set)
}

// Validate reports every problem of the graph at once: edges referring to
// unknown nodes, self loops, duplicated edges, and negative node ids.
func (g *Graph) Validate() error {
	var result *multierror.Error

	for _, id := range g.Nodes() {
		if id < 0 {
			result = multierror.Append(result, sim.NewConfigurationError("",
				"node id %d must not be negative", id))
		}
	}

	seen := make(map[Edge]bool)

	for _, e := range g.edges {
		if !g.nodes[e.From] {
			result = multierror.Append(result, sim.NewConfigurationError("",
				"edge %d-%d refers to unknown node %d", e.From, e.To, e.From))
		}

		if !g.nodes[e.To] {
			result = multierror.Append(result, sim.NewConfigurationError("",
				"edge %d-%d refers to unknown node %d", e.From, e.To, e.To))
		}

		if e.From == e.To {
			result = multierror.Append(result, sim.NewConfigurationError("",
				"self loop on node %d", e.From))
		}

		key := g.normalize(e)
		if seen[key] {
			result = multierror.Append(result, sim.NewConfigurationError("",
				"duplicated edge %d-%d", e.From, e.To))
		}

		seen[key] = true
	}

	return result.ErrorOrNil()
}

func (g *Graph) clone() *Graph {
	c := NewGraph(g.directed)
	for id := range g.nodes {
		c.AddNode(id)
	}

	c.edges = g.Edges()

	return c
}

func (g *Graph) normalize(e Edge) Edge {
	if !g.directed && e.From > e.To {
		return Edge{From: e.To, To: e.From}
	}

	return e
}

// String describes the graph.
func (g *Graph) String() string {
	kind := "undirected"
	if g.directed {
		kind = "directed"
	}

	return fmt.Sprintf("%s graph with %d nodes and %d edges",
		kind, len(g.nodes), len(g.edges))
}

// Ring creates the graph 0-1-...-(n-1)-0. A directed ring points from every
// node to the next one.
func Ring(n int, directed bool) *Graph {
	g := NewGraph(directed)
	g.AddNodes(n)

	if n < 2 {
		return g
	}

	for i := 0; i < n; i++ {
		next := (i + 1) % n
		if n == 2 && i == 1 && !directed {
			break
		}

		g.AddEdge(sim.NodeID(i), sim.NodeID(next))
	}

	return g
}

// Path creates the undirected graph 0-1-...-(n-1).
func Path(n int) *Graph {
	g := NewGraph(false)
	g.AddNodes(n)

	for i := 0; i+1 < n; i++ {
		g.AddEdge(sim.NodeID(i), sim.NodeID(i+1))
	}

	return g
}

// Complete creates the undirected graph where every pair of nodes is
// connected.
func Complete(n int) *Graph {
	g := NewGraph(false)
	g.AddNodes(n)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			g.AddEdge(sim.NodeID(i), sim.NodeID(j))
		}
	}

	return g
}

// RandomGNP creates an Erdős–Rényi graph where every possible edge is present
// with probability p. The same seed always produces the same graph.
func RandomGNP(n int, p float64, seed int64, directed bool) *Graph {
	g := NewGraph(directed)
	g.AddNodes(n)

	rng := rand.New(rand.NewSource(seed))

	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || (!directed && j < i) {
				continue
			}

			if rng.Float64() < p {
				g.AddEdge(sim.NodeID(i), sim.NodeID(j))
			}
		}
	}

	return g
}

func sortedSet(set map[sim.NodeID]bool) []sim.NodeID {
	nodes := make([]sim.NodeID, 0, len(set))
	for id := range set {
		nodes = append(nodes, id)
	}

	sortNodes(nodes)

	return nodes
}

func sortNodes(nodes []sim.NodeID) {
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })
}
