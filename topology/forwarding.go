package topology

import (
	"errors"
	"fmt"

	"github.com/sarchlab/ahc/sim"
)

// Sentinel next hops of the forwarding table.
const (
	// Unreachable marks that no path exists between two nodes.
	Unreachable sim.NodeID = -3

	// Self is the next hop from a node to itself, where the shortest path
	// consists of the node alone.
	Self sim.NodeID = -4
)

// ErrUnreachable is returned when no path exists between two nodes.
var ErrUnreachable = errors.New("destination unreachable")

// A ForwardingTable finds the next hop on a shortest path towards a final
// destination.
type ForwardingTable interface {
	FindNextHop(from, to sim.NodeID) sim.NodeID
	DefineRoute(from, to, nextHop sim.NodeID)
}

// NewForwardingTable creates an empty ForwardingTable. Routes that are not
// defined are Unreachable.
func NewForwardingTable() ForwardingTable {
	return &forwardingTable{t: make(map[sim.NodeID]map[sim.NodeID]sim.NodeID)}
}

type forwardingTable struct {
	t map[sim.NodeID]map[sim.NodeID]sim.NodeID
}

func (t *forwardingTable) FindNextHop(from, to sim.NodeID) sim.NodeID {
	next, found := t.t[from][to]
	if !found {
		return Unreachable
	}

	return next
}

func (t *forwardingTable) DefineRoute(from, to, nextHop sim.NodeID) {
	row, found := t.t[from]
	if !found {
		row = make(map[sim.NodeID]sim.NodeID)
		t.t[from] = row
	}

	row[to] = nextHop
}

// computeForwardingTable runs a breadth-first search from every node.
// Successors are visited in id order, so that ties between equally short
// paths are broken the same way on every run.
func computeForwardingTable(g *Graph) ForwardingTable {
	table := NewForwardingTable()
	nodes := g.Nodes()

	successors := make(map[sim.NodeID][]sim.NodeID, len(nodes))
	for _, n := range nodes {
		successors[n] = g.Successors(n)
	}

	for _, src := range nodes {
		// firstHop[v] is the second node on the path from src to v.
		firstHop := map[sim.NodeID]sim.NodeID{src: Self}
		queue := []sim.NodeID{src}

		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]

			for _, v := range successors[u] {
				if _, visited := firstHop[v]; visited {
					continue
				}

				if u == src {
					firstHop[v] = v
				} else {
					firstHop[v] = firstHop[u]
				}

				queue = append(queue, v)
			}
		}

		for _, dst := range nodes {
			next, found := firstHop[dst]
			if !found {
				next = Unreachable
			}

			table.DefineRoute(src, dst, next)
		}
	}

	return table
}

// Route returns the next hop from one node towards another, or an error
// wrapping ErrUnreachable.
func (t *Topology) Route(from, to sim.NodeID) (sim.NodeID, error) {
	next := t.GetNextHop(from, to)
	if next == Unreachable {
		return Unreachable, fmt.Errorf("%w: no path from %d to %d",
			ErrUnreachable, from, to)
	}

	return next, nil
}
