package sim

import (
	"strconv"
	"sync"
)

// Direction names a connector slot of a component.
type Direction int

// The connector directions.
const (
	Down Direction = iota
	Up
	Peer
)

// String returns the name of the direction.
func (d Direction) String() string {
	switch d {
	case Down:
		return "Down"
	case Up:
		return "Up"
	case Peer:
		return "Peer"
	default:
		return "Direction(" + strconv.Itoa(int(d)) + ")"
	}
}

// Connectors is a multimap from direction to an ordered list of peers.
// Adding a peer never replaces an existing one; several peers in the same
// direction receive the same events in the order they were added.
type Connectors struct {
	lock  sync.RWMutex
	peers map[Direction][]Key
}

// Add appends a peer to the given direction.
func (c *Connectors) Add(dir Direction, peer Key) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.peers == nil {
		c.peers = make(map[Direction][]Key)
	}

	c.peers[dir] = append(c.peers[dir], peer)
}

// Remove deletes the first occurrence of a peer from the given direction. It
// returns false if the peer was not connected.
func (c *Connectors) Remove(dir Direction, peer Key) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	list := c.peers[dir]
	for i, k := range list {
		if k == peer {
			c.peers[dir] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}

	return false
}

// Get returns a copy of the peers connected in the given direction.
func (c *Connectors) Get(dir Direction) []Key {
	c.lock.RLock()
	defer c.lock.RUnlock()

	list := c.peers[dir]
	if len(list) == 0 {
		return nil
	}

	peers := make([]Key, len(list))
	copy(peers, list)

	return peers
}

// Contains tells if the peer is connected in the given direction.
func (c *Connectors) Contains(dir Direction, peer Key) bool {
	c.lock.RLock()
	defer c.lock.RUnlock()

	for _, k := range c.peers[dir] {
		if k == peer {
			return true
		}
	}

	return false
}

// Len returns the number of peers connected in the given direction.
func (c *Connectors) Len(dir Direction) int {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return len(c.peers[dir])
}
