package sim

import "strconv"

// NodeID identifies a node of the simulated topology.
type NodeID int

// Destination sentinels that can be used in place of a real node ID.
const (
	// LinkLayerBroadcast addresses all directly connected neighbors.
	LinkLayerBroadcast NodeID = -1

	// NetworkLayerBroadcast addresses all transitively reachable nodes.
	NetworkLayerBroadcast NodeID = -2
)

// String returns the decimal node ID or the name of a sentinel.
func (n NodeID) String() string {
	switch n {
	case LinkLayerBroadcast:
		return "LinkLayerBroadcast"
	case NetworkLayerBroadcast:
		return "NetworkLayerBroadcast"
	default:
		return strconv.Itoa(int(n))
	}
}

// IsBroadcast tells if the ID is one of the broadcast sentinels.
func (n NodeID) IsBroadcast() bool {
	return n == LinkLayerBroadcast || n == NetworkLayerBroadcast
}

// MessageType is the protocol-defined type of a message, e.g. "MARKER".
type MessageType string

// MessageHeader carries the addressing information of a Message.
type MessageHeader struct {
	Type       MessageType
	From       NodeID
	To         NodeID
	NextHop    NodeID
	SequenceID int
}

// A Message is a protocol data unit carried as the payload of an Event.
type Message struct {
	Header  MessageHeader
	Payload any
}

// UniqueID identifies a message across the whole simulation.
type UniqueID struct {
	From       NodeID
	SequenceID int
}

// UniqueID returns the (from, sequenceID) pair of the message, which is used
// for de-duplication.
func (m Message) UniqueID() UniqueID {
	return UniqueID{From: m.Header.From, SequenceID: m.Header.SequenceID}
}

// Inner returns the payload as an encapsulated Message. The second return
// value is false if the payload is not a Message.
func (m Message) Inner() (Message, bool) {
	inner, ok := m.Payload.(Message)
	return inner, ok
}
